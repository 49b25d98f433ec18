package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"interviewsim/internal/domain"
)

// DefaultCooldown is how long a failed provider is moved to the back of the chain.
const DefaultCooldown = time.Minute

var errEmptyReply = errors.New("empty reply")

// FailoverProvider walks llm.priority until one provider answers. A provider
// that fails is benched for the cooldown: later turns try it only after every
// provider in good standing has failed too.
type FailoverProvider struct {
	providers []domain.Provider
	cooldown  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu           sync.Mutex
	benchedUntil map[string]time.Time
}

type FailoverOption func(*FailoverProvider)

// WithCooldown sets how long a failing provider stays benched. Zero disables benching.
func WithCooldown(d time.Duration) FailoverOption {
	return func(fp *FailoverProvider) { fp.cooldown = d }
}

// NewFailoverProvider creates a failover chain from the given providers in priority order.
func NewFailoverProvider(providers []domain.Provider, logger *slog.Logger, opts ...FailoverOption) *FailoverProvider {
	if logger == nil {
		logger = slog.Default()
	}
	fp := &FailoverProvider{
		providers:    providers,
		cooldown:     DefaultCooldown,
		logger:       logger,
		now:          time.Now,
		benchedUntil: make(map[string]time.Time),
	}
	for _, o := range opts {
		o(fp)
	}
	return fp
}

func (fp *FailoverProvider) Name() string {
	names := make([]string, len(fp.providers))
	for i, p := range fp.providers {
		names[i] = p.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

func (fp *FailoverProvider) Models() []string {
	var all []string
	seen := make(map[string]bool)
	for _, p := range fp.providers {
		for _, m := range p.Models() {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	return all
}

func (fp *FailoverProvider) Healthy(ctx context.Context) error {
	for _, p := range fp.providers {
		if err := p.Healthy(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no healthy provider in failover chain")
}

// Chat returns the first non-empty reply. The answering provider is recorded
// in ChatResponse.Provider. A cancelled context stops the chain.
func (fp *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if len(fp.providers) == 0 {
		return nil, fmt.Errorf("failover chain is empty")
	}
	var lastErr error
	for i, p := range fp.order() {
		resp, err := p.Chat(ctx, req)
		if err == nil && strings.TrimSpace(resp.Content) == "" {
			err = errEmptyReply
		}
		if err == nil {
			fp.reinstate(p.Name())
			if i > 0 {
				fp.logger.Info("failover: used fallback provider", "provider", p.Name(), "attempt", i+1)
			}
			if resp.Provider == "" {
				resp.Provider = p.Name()
			}
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fp.bench(p.Name())
		fp.logger.Warn("failover: provider failed, trying next",
			"provider", p.Name(),
			"attempt", i+1,
			"err", err,
		)
	}
	return nil, fmt.Errorf("all providers in failover chain failed: %w", lastErr)
}

// order returns providers in good standing first, benched ones after,
// each group keeping priority order.
func (fp *FailoverProvider) order() []domain.Provider {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	now := fp.now()
	ready := make([]domain.Provider, 0, len(fp.providers))
	var benched []domain.Provider
	for _, p := range fp.providers {
		if until, ok := fp.benchedUntil[p.Name()]; ok && now.Before(until) {
			benched = append(benched, p)
			continue
		}
		ready = append(ready, p)
	}
	return append(ready, benched...)
}

func (fp *FailoverProvider) bench(name string) {
	if fp.cooldown <= 0 {
		return
	}
	fp.mu.Lock()
	fp.benchedUntil[name] = fp.now().Add(fp.cooldown)
	fp.mu.Unlock()
}

func (fp *FailoverProvider) reinstate(name string) {
	fp.mu.Lock()
	delete(fp.benchedUntil, name)
	fp.mu.Unlock()
}
