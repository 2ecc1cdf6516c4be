package brain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/abelbrown/viralengine/internal/model"
)

// Provider defaults, used when the settings leave a field empty.
const (
	DefaultClaudeModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash"

	defaultMaxTokens = 2048
)

// Settings configure one provider.
type Settings struct {
	APIKey    string
	Model     string
	Endpoint  string
	Timeout   time.Duration
	MaxTokens int
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Provider configurations

func ClaudeConfig(s Settings) *ProviderConfig {
	return &ProviderConfig{
		Name:       "claude",
		Endpoint:   orDefault(s.Endpoint, "https://api.anthropic.com/v1/messages"),
		APIKey:     s.APIKey,
		Model:      orDefault(s.Model, DefaultClaudeModel),
		AuthHeader: "x-api-key",
		ExtraHeaders: map[string]string{
			"anthropic-version": "2023-06-01",
		},
		Timeout:       s.Timeout,
		MaxTokens:     s.MaxTokens,
		BuildBody:     buildClaudeBody,
		ParseResponse: parseClaudeResponse,
	}
}

func OpenAIConfig(s Settings) *ProviderConfig {
	return &ProviderConfig{
		Name:          "openai",
		Endpoint:      orDefault(s.Endpoint, "https://api.openai.com/v1/chat/completions"),
		APIKey:        s.APIKey,
		Model:         orDefault(s.Model, DefaultOpenAIModel),
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		Timeout:       s.Timeout,
		MaxTokens:     s.MaxTokens,
		BuildBody:     buildOpenAIBody,
		ParseResponse: parseOpenAIResponse,
	}
}

// jsonInstruction is appended to the system prompt of providers without
// native structured output.
func jsonInstruction(req Request) string {
	if !req.JSON {
		return req.SystemPrompt
	}
	var b strings.Builder
	b.WriteString(req.SystemPrompt)
	b.WriteString("\n\nRespond with a single JSON object and nothing else.")
	if len(req.Schema) > 0 {
		b.WriteString(" Fields:")
		for _, f := range req.Schema {
			kind := "string"
			if f.List {
				kind = "array of strings"
			}
			need := "optional"
			if f.Required {
				need = "required"
			}
			b.WriteString("\n- " + f.Name + " (" + kind + ", " + need + "): " + f.Description)
		}
	}
	return strings.TrimSpace(b.String())
}

func maxTokensOr(v, defaultVal int) int {
	if v > 0 {
		return v
	}
	return defaultVal
}

// Body builders

func buildClaudeBody(cfg *ProviderConfig, req Request) map[string]any {
	body := map[string]any{
		"model":      cfg.Model,
		"max_tokens": maxTokensOr(req.MaxTokens, maxTokensOr(cfg.MaxTokens, defaultMaxTokens)),
		"messages":   []map[string]string{{"role": "user", "content": req.UserPrompt}},
	}
	if system := jsonInstruction(req); system != "" {
		body["system"] = system
	}
	return body
}

func buildOpenAIBody(cfg *ProviderConfig, req Request) map[string]any {
	messages := []map[string]string{}
	if system := jsonInstruction(req); system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.UserPrompt})

	body := map[string]any{
		"model":                 cfg.Model,
		"max_completion_tokens": maxTokensOr(req.MaxTokens, maxTokensOr(cfg.MaxTokens, defaultMaxTokens)),
		"messages":              messages,
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	return body
}

// Response parsers

func parseClaudeResponse(body []byte) (string, string, model.Usage, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", model.Usage{}, err
	}
	var texts []string
	for _, c := range resp.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}
	usage := model.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return strings.Join(texts, "\n\n"), resp.Model, usage, nil
}

func parseOpenAIResponse(body []byte) (string, string, model.Usage, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", model.Usage{}, err
	}
	usage := model.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, resp.Model, usage, nil
	}
	return "", resp.Model, usage, nil
}
