package brain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/model"
)

var _ Provider = (*GeminiProvider)(nil)

// GeminiProvider talks to the Gemini API through the genai SDK, which
// gives it native structured output.
type GeminiProvider struct {
	settings Settings

	once   sync.Once
	client *genai.Client
	err    error
}

// NewGeminiProvider creates a provider. The SDK client is created on
// first use.
func NewGeminiProvider(s Settings) *GeminiProvider {
	s.Model = orDefault(s.Model, DefaultGeminiModel)
	return &GeminiProvider{settings: s}
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) Available() bool { return g.settings.APIKey != "" }

func (g *GeminiProvider) init(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:  g.settings.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if g.settings.Endpoint != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.settings.Endpoint}
		}
		g.client, g.err = genai.NewClient(ctx, cc)
	})
	return g.client, g.err
}

func (g *GeminiProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !g.Available() {
		return Response{}, fmt.Errorf("gemini provider not configured")
	}
	client, err := g.init(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("create gemini client: %w", err)
	}

	if g.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.settings.Timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokensOr(req.MaxTokens, maxTokensOr(g.settings.MaxTokens, defaultMaxTokens))),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = responseSchema(req.Schema)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.UserPrompt}},
		Role:  "user",
	}}

	logging.Debug("gemini request", "model", g.settings.Model, "task", req.Task)
	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, g.settings.Model, contents, cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gemini API call failed: %w", err)
	}

	modelID := resp.ModelVersion
	if modelID == "" {
		modelID = g.settings.Model
	}
	usage := model.Usage{ModelID: modelID}
	if md := resp.UsageMetadata; md != nil {
		usage.InputTokens = int(md.PromptTokenCount)
		usage.OutputTokens = int(md.CandidatesTokenCount)
		usage.TotalTokens = int(md.TotalTokenCount)
	}
	logging.Debug("gemini response", "model", modelID, "tokens", usage.TotalTokens, "elapsed", time.Since(start))

	return Response{
		Content:  resp.Text(),
		Model:    modelID,
		Provider: g.Name(),
		Usage:    usage,
	}, nil
}

// responseSchema converts flat schema fields into a genai object schema.
// A nil schema leaves the model free-form JSON.
func responseSchema(fields []SchemaField) *genai.Schema {
	if len(fields) == 0 {
		return nil
	}
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(fields)),
	}
	for _, f := range fields {
		prop := &genai.Schema{Type: genai.TypeString, Description: f.Description}
		if f.List {
			prop = &genai.Schema{
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: f.Description,
			}
		}
		s.Properties[f.Name] = prop
		if f.Required {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}
