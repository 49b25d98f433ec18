package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"interviewsim/internal/config"
	"interviewsim/internal/domain"
)

// ProviderConstructor is a function that creates a provider from a config entry.
type ProviderConstructor func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider

// Factory creates and caches LLM providers from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	constructors map[string]ProviderConstructor
	cache        map[string]domain.Provider
	mu           sync.RWMutex
}

// NewFactory creates a provider factory with the built-in constructors registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		constructors: make(map[string]ProviderConstructor),
		cache:        make(map[string]domain.Provider),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a provider constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor ProviderConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

// registerDefaults registers all built-in provider constructors.
func (f *Factory) registerDefaults() {
	f.constructors["openai"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewOpenAI(openAIConfig(pc, logger))
	}
	f.constructors["groq"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewGroq(openAIConfig(pc, logger))
	}
	f.constructors["google"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewGoogle(openAIConfig(pc, logger))
	}
	f.constructors["ollama"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewOllama(OllamaConfig{APIBase: pc.APIBase, DefaultModel: pc.DefaultModel, MaxRetries: 3, Logger: logger})
	}
	f.constructors["claude"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewClaude(ClaudeConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, MaxRetries: 3, Logger: logger})
	}
}

func openAIConfig(pc config.ProviderConfig, logger *slog.Logger) OpenAIConfig {
	return OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, MaxRetries: 3, Logger: logger}
}

// Get returns the provider with the given name, or llm.provider if name is empty.
// Created providers are cached so the same instance is reused across calls.
// Uses double-check locking to avoid TOCTOU races.
func (f *Factory) Get(name string) (domain.Provider, error) {
	if name == "" {
		name = f.cfg.LLM.Provider
	}

	// Fast path: read lock.
	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	// Slow path: write lock with double-check.
	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}

	ctor, found := f.constructors[name]

	var p domain.Provider
	if found {
		p = ctor(pc, f.logger)
	} else if pc.APIBase != "" && pc.APIKey != "" {
		// Fallback: treat unknown providers as OpenAI-compatible.
		cfg := openAIConfig(pc, f.logger)
		cfg.Name = name
		p = NewOpenAI(cfg)
	} else {
		return nil, fmt.Errorf("provider %s: no constructor registered and no API base/key configured", name)
	}

	f.cache[name] = p
	return p, nil
}

// DefaultProvider returns the configured llm.provider.
func (f *Factory) DefaultProvider() (domain.Provider, error) {
	return f.Get("")
}

// Chain returns the provider the interview talks to. With llm.failover set it
// is a FailoverProvider over llm.priority, skipping providers that are
// disabled or lack credentials. Otherwise it is llm.provider alone.
func (f *Factory) Chain() (domain.Provider, error) {
	if !f.cfg.LLM.Failover || len(f.cfg.LLM.Priority) == 0 {
		return f.DefaultProvider()
	}
	var chain []domain.Provider
	for _, name := range f.cfg.LLM.Priority {
		p, err := f.Get(name)
		if err != nil {
			f.logger.Debug("skipping provider in failover chain", "provider", name, "err", err)
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable provider in llm.priority %v", f.cfg.LLM.Priority)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return NewFailoverProvider(chain, f.logger), nil
}

// Generator wraps Chain with the generation settings of llm.provider.
func (f *Factory) Generator() (*Generator, error) {
	p, err := f.Chain()
	if err != nil {
		return nil, err
	}
	pc := f.cfg.Providers[f.cfg.LLM.Provider]
	return NewGenerator(p, GeneratorConfig{
		SystemPrompt:       f.cfg.LLM.SystemPrompt,
		Temperature:        pc.Temperature,
		MaxTokens:          pc.MaxTokens,
		RateLimitPerMinute: pc.RateLimitPerMin,
		Logger:             f.logger,
	}), nil
}

// HealthyProvider returns the first provider that passes a health check, or nil.
// Priority order is tried first, then the remaining providers by name.
func (f *Factory) HealthyProvider(ctx context.Context) domain.Provider {
	for _, name := range f.order() {
		p, err := f.Get(name)
		if err != nil || p == nil {
			continue
		}
		if p.Healthy(ctx) == nil {
			return p
		}
	}
	return nil
}

// Check runs a health check against every enabled provider.
func (f *Factory) Check(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for _, name := range f.order() {
		if !f.cfg.Providers[name].Enabled {
			continue
		}
		p, err := f.Get(name)
		if err != nil {
			out[name] = err
			continue
		}
		out[name] = p.Healthy(ctx)
	}
	return out
}

func (f *Factory) order() []string {
	seen := make(map[string]bool)
	var names []string
	for _, n := range f.cfg.LLM.Priority {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	var rest []string
	for n := range f.cfg.Providers {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
