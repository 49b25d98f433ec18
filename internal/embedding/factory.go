// Package embedding provides the text embedders used to index and query the knowledge base.
package embedding

import (
	"fmt"
	"log/slog"
	"time"

	"interviewsim/internal/domain"
)

// Config selects an embedder.
type Config struct {
	Type      string // hashing | openai | ollama
	Dimension int
	APIBase   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// New builds the embedder named by cfg.Type. An empty type means hashing.
func New(cfg Config) (domain.Embedder, error) {
	switch cfg.Type {
	case "", "hashing":
		return NewHashing(cfg.Dimension), nil
	case "openai":
		return NewOpenAI(OpenAIConfig{
			Name:    "openai",
			APIBase: cfg.APIBase,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Logger:  cfg.Logger,
		}), nil
	case "ollama":
		base := cfg.APIBase
		if base == "" {
			base = "http://localhost:11434/api"
		}
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOpenAI(OpenAIConfig{
			Name:    "ollama",
			APIBase: base,
			Model:   model,
			Timeout: cfg.Timeout,
			Logger:  cfg.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder type %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
}
