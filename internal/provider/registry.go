package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Credential holds connection settings for one provider.
type Credential struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Registry holds the configured providers and resolves model references.
type Registry struct {
	mu           sync.RWMutex
	providers    map[string]Provider
	defaultModel string // "provider/model" or bare model ID
}

// NewRegistry creates an empty registry with a default model reference.
func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		providers:    make(map[string]Provider),
		defaultModel: defaultModel,
	}
}

// Register adds a provider, keyed by its ID.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get looks up a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns every registered provider.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel resolves one model within a provider's catalog.
func (r *Registry) GetModel(providerID, modelID string) (*Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}
	for _, m := range provider.Models() {
		if m.ID == modelID {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns every model from every provider, best first.
func (r *Registry) AllModels() []Model {
	var models []Model
	for _, p := range r.List() {
		models = append(models, p.Models()...)
	}
	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})
	return models
}

// DefaultModel resolves the configured default. A bare model ID is tried
// against every provider; with nothing configured the best-ranked
// available model wins.
func (r *Registry) DefaultModel() (*Model, error) {
	if r.defaultModel != "" {
		providerID, modelID := ParseModelString(r.defaultModel)
		if providerID != "" {
			return r.GetModel(providerID, modelID)
		}
		for _, p := range r.List() {
			if m, err := r.GetModel(p.ID(), modelID); err == nil {
				return m, nil
			}
		}
	}

	if m, err := r.GetModel("anthropic", "claude-sonnet-4-20250514"); err == nil {
		return m, nil
	}

	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}
	return &models[0], nil
}

// ParseModelString splits a "provider/model" reference. A reference with
// no slash is a bare model ID with an empty provider.
func ParseModelString(s string) (providerID, modelID string) {
	if before, after, found := strings.Cut(s, "/"); found {
		return before, after
	}
	return "", s
}

// modelPriority ranks models for default selection.
func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	default:
		return 50
	}
}

// InitializeProviders builds a registry from credentials, registering a
// provider for every entry that carries an API key. Providers that fail to
// construct are skipped rather than failing the whole set.
func InitializeProviders(ctx context.Context, creds map[string]Credential, defaultModel string) (*Registry, error) {
	registry := NewRegistry(defaultModel)

	if cfg, ok := creds["anthropic"]; ok && cfg.APIKey != "" {
		provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: 8192,
		})
		if err == nil {
			registry.Register(provider)
		}
	}

	if cfg, ok := creds["openai"]; ok && cfg.APIKey != "" {
		provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: 4096,
		})
		if err == nil {
			registry.Register(provider)
		}
	}

	return registry, nil
}
