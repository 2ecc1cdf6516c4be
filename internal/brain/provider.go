// Package brain wraps the generative text providers used to draft briefs
// and content.
package brain

import (
	"context"
	"errors"
	"fmt"

	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/model"
)

// ErrNoProvider means no configured provider is available.
var ErrNoProvider = errors.New("no AI provider available")

// Provider is the interface for AI providers
type Provider interface {
	// Name returns the provider name (e.g., "claude", "openai")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the response
	Generate(ctx context.Context, req Request) (Response, error)
}

// SchemaField describes one top-level field of a JSON response.
type SchemaField struct {
	Name        string
	Description string
	List        bool // array of strings instead of a string
	Required    bool
}

// Request is a prompt request to an AI provider
type Request struct {
	Task         string // label for logs and metrics
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int

	// JSON asks for a JSON object response. Providers with native
	// structured output also receive Schema.
	JSON   bool
	Schema []SchemaField
}

// Response is the AI provider's response
type Response struct {
	Content  string
	Model    string
	Provider string
	Usage    model.Usage
}

// ProviderManager manages multiple AI providers with fallback
type ProviderManager struct {
	providers []Provider
	preferred string // Preferred provider name
}

// NewProviderManager creates a new provider manager
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		providers: make([]Provider, 0),
	}
}

// AddProvider adds a provider to the manager
func (pm *ProviderManager) AddProvider(p Provider) {
	pm.providers = append(pm.providers, p)
}

// SetPreferred sets the preferred provider by name
func (pm *ProviderManager) SetPreferred(name string) {
	pm.preferred = name
}

// Name reports the preferred provider, or "auto".
func (pm *ProviderManager) Name() string {
	if p := pm.GetAvailable(); p != nil {
		return p.Name()
	}
	return "auto"
}

// Available reports whether any provider can serve a request.
func (pm *ProviderManager) Available() bool {
	return pm.GetAvailable() != nil
}

// GetAvailable returns the first available provider, preferring the preferred one
func (pm *ProviderManager) GetAvailable() Provider {
	if ordered := pm.ordered(); len(ordered) > 0 {
		return ordered[0]
	}
	return nil
}

// GetByName returns a provider by name
func (pm *ProviderManager) GetByName(name string) Provider {
	for _, p := range pm.providers {
		if p.Name() == name && p.Available() {
			return p
		}
	}
	return nil
}

// ListAvailable returns names of all available providers
func (pm *ProviderManager) ListAvailable() []string {
	var names []string
	for _, p := range pm.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}

// ordered lists available providers, preferred first.
func (pm *ProviderManager) ordered() []Provider {
	var out []Provider
	for _, p := range pm.providers {
		if p.Name() == pm.preferred && p.Available() {
			out = append(out, p)
		}
	}
	for _, p := range pm.providers {
		if p.Name() != pm.preferred && p.Available() {
			out = append(out, p)
		}
	}
	return out
}

// Generate tries each available provider, preferred first, until one
// answers. Context cancellation stops the fallback.
func (pm *ProviderManager) Generate(ctx context.Context, req Request) (Response, error) {
	providers := pm.ordered()
	if len(providers) == 0 {
		return Response{}, ErrNoProvider
	}

	var errs []error
	for _, p := range providers {
		resp, err := p.Generate(ctx, req)
		if err == nil {
			if resp.Provider == "" {
				resp.Provider = p.Name()
			}
			return resp, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
		logging.Warn("provider failed, trying next", "provider", p.Name(), "task", req.Task, "error", err)
	}
	return Response{}, errors.Join(errs...)
}
