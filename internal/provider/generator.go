package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"interviewsim/internal/domain"
	"interviewsim/internal/metrics"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024

	// DefaultSystemPrompt frames every conversation sent to the LLM.
	DefaultSystemPrompt = "You are an experienced technical interviewer. " +
		"Ask one focused question at a time, ground your questions in the reference material you are given, " +
		"and keep a professional, encouraging tone."
)

type GeneratorConfig struct {
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
	// RateLimitPerMinute throttles calls to the provider. Zero disables throttling.
	RateLimitPerMinute int
	Logger             *slog.Logger
}

// Generator adapts a chat Provider to domain.Generator: it turns the prompt and
// the conversation so far into one chat request and returns the reply text.
type Generator struct {
	provider domain.Provider
	cfg      GeneratorConfig
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewGenerator(p domain.Provider, cfg GeneratorConfig) *Generator {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	g := &Generator{provider: p, cfg: cfg, logger: cfg.Logger}
	if n := cfg.RateLimitPerMinute; n > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), min(n, 5))
	}
	return g
}

// Name returns the name of the wrapped provider.
func (g *Generator) Name() string { return g.provider.Name() }

// Messages builds the chat messages for a prompt: the system prompt, then the
// history as user/assistant turns, then the prompt as the final user message.
func (g *Generator) Messages(prompt string, history []domain.Turn) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.Message{Role: domain.MessageSystem, Content: g.cfg.SystemPrompt})
	for _, t := range history {
		msgs = append(msgs, domain.Message{Role: string(t.Role), Content: t.Text})
	}
	msgs = append(msgs, domain.Message{Role: domain.MessageUser, Content: prompt})
	return msgs
}

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string, history []domain.Turn) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	req := domain.ChatRequest{
		Messages:    g.Messages(prompt, history),
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}

	metrics.LLMRequestsTotal.Inc()
	start := time.Now()
	resp, err := g.provider.Chat(ctx, req)
	metrics.LLMLatency.ObserveDuration(time.Since(start))
	if err != nil {
		metrics.LLMFailuresTotal.Inc()
		return "", fmt.Errorf("generate with %s: %w", g.provider.Name(), err)
	}

	answeredBy := resp.Provider
	if answeredBy == "" {
		answeredBy = g.provider.Name()
	}
	g.logger.Debug("generated reply",
		"provider", answeredBy,
		"latency_ms", time.Since(start).Milliseconds(),
		"tokens", resp.Usage.TotalTokens,
	)
	if strings.TrimSpace(resp.Content) == "" {
		metrics.LLMFailuresTotal.Inc()
		return "", fmt.Errorf("generate with %s: empty reply", g.provider.Name())
	}
	if resp.FinishReason == "length" {
		g.logger.Warn("reply truncated by max tokens", "provider", g.provider.Name(), "max_tokens", g.cfg.MaxTokens)
	}
	return resp.Content, nil
}
