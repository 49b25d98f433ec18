package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"interviewsim/internal/domain"
	"interviewsim/internal/knowledge"
	"interviewsim/internal/metrics"
)

const (
	DefaultTopK             = 5
	DefaultMaxContextLength = 2000
	DefaultHistoryTurns     = 6
)

// Retriever finds knowledge-base chunks for a query. *knowledge.Engine implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, domains []string) ([]domain.RetrievalResult, error)
}

type Config struct {
	Retriever   Retriever
	Generator   domain.Generator
	Prompts     *PromptBuilder
	Assembler   knowledge.Assembler
	Transcripts domain.TranscriptStore // optional

	Provider         string // recorded with transcripts
	TopK             int
	MaxContextLength int
	HistoryTurns     int // turns sent to the LLM with each request
	Logger           *slog.Logger
}

// Interviewer drives sessions: every step retrieves reference material,
// builds a prompt and asks the LLM for the next message.
type Interviewer struct {
	retriever   Retriever
	generator   domain.Generator
	prompts     *PromptBuilder
	assembler   knowledge.Assembler
	transcripts domain.TranscriptStore
	provider    string
	topK        int
	maxContext  int
	history     int
	logger      *slog.Logger
}

func New(cfg Config) (*Interviewer, error) {
	if cfg.Retriever == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("%w: interviewer needs a retriever and a generator", domain.ErrInvalidConfiguration)
	}
	if cfg.Prompts == nil {
		cfg.Prompts = NewPromptBuilder(PromptConfig{})
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = DefaultMaxContextLength
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultHistoryTurns
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Interviewer{
		retriever:   cfg.Retriever,
		generator:   cfg.Generator,
		prompts:     cfg.Prompts,
		assembler:   cfg.Assembler,
		transcripts: cfg.Transcripts,
		provider:    cfg.Provider,
		topK:        cfg.TopK,
		maxContext:  cfg.MaxContextLength,
		history:     cfg.HistoryTurns,
		logger:      cfg.Logger,
	}, nil
}

// Start asks the opening question and records it as the first turn.
func (iv *Interviewer) Start(ctx context.Context, s *Session) (string, error) {
	if s.Len() > 0 {
		return "", fmt.Errorf("interview %s already started", s.ID)
	}

	refs, err := iv.reference(ctx, iv.prompts.OpeningQuery(s.Domains), s.Domains)
	if err != nil {
		return "", err
	}
	prompt := iv.prompts.Opening(s.Domains, refs)

	start := time.Now()
	question, err := iv.generator.Generate(ctx, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("generate opening question: %w", err)
	}
	latency := time.Since(start)

	if err := s.AppendTurn(domain.RoleAssistant, question); err != nil {
		return "", err
	}
	metrics.ActiveInterviews.Inc()

	iv.persistStart(ctx, s)
	iv.persist(ctx, s.ID, latency, domain.TurnRecord{Role: domain.RoleAssistant, Content: question})

	iv.logger.Info("interview started", "interview", s.ID, "domains", s.Domains, "difficulty", s.Difficulty)
	return question, nil
}

// Respond processes a candidate answer: retrieve, assemble, prompt, generate.
// Only when every step succeeds are the answer and the reply appended, so a
// failed turn leaves the history untouched.
func (iv *Interviewer) Respond(ctx context.Context, s *Session, answer string) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer", domain.ErrInvalidConfiguration)
	}
	if s.Finished() {
		return "", domain.ErrInterviewFinished
	}

	refs, err := iv.reference(ctx, answer, s.Domains)
	if err != nil {
		return "", err
	}
	prompt := iv.prompts.Turn(s.Domains, answer, refs)

	start := time.Now()
	reply, err := iv.generator.Generate(ctx, prompt, s.Recent(iv.history))
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	latency := time.Since(start)

	if err := s.appendExchange(answer, reply); err != nil {
		return "", err
	}
	metrics.TurnsTotal.Inc()

	iv.persist(ctx, s.ID, latency,
		domain.TurnRecord{Role: domain.RoleUser, Content: answer},
		domain.TurnRecord{Role: domain.RoleAssistant, Content: reply},
	)
	return reply, nil
}

// Feedback asks for an assessment of the interview so far. The assessment
// is not added to the conversation.
func (iv *Interviewer) Feedback(ctx context.Context, s *Session) (string, error) {
	n := s.Len()
	if n < 2 {
		return "", errors.New("no answers to assess yet")
	}
	prompt := iv.prompts.Feedback(s.Domains, s.RenderHistory(n))
	out, err := iv.generator.Generate(ctx, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("generate feedback: %w", err)
	}
	return out, nil
}

// End marks the session as no longer running.
func (iv *Interviewer) End(s *Session) {
	if s.Len() > 0 {
		metrics.ActiveInterviews.Dec()
	}
	iv.logger.Info("interview ended", "interview", s.ID, "turns", s.Len())
}

func (iv *Interviewer) reference(ctx context.Context, query string, domains []string) (string, error) {
	results, err := iv.retriever.Retrieve(ctx, query, iv.topK, domains)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	return iv.assembler.Assemble(results, iv.maxContext), nil
}

// Transcript writes are best effort: the in-memory session stays the source
// of truth for the running interview.
func (iv *Interviewer) persistStart(ctx context.Context, s *Session) {
	if iv.transcripts == nil {
		return
	}
	err := iv.transcripts.CreateInterview(ctx, domain.Interview{
		ID:         s.ID,
		Title:      iv.prompts.Topic(s.Domains),
		Domains:    s.Domains,
		Difficulty: s.Difficulty,
		Provider:   iv.provider,
		CreatedAt:  s.CreatedAt,
	})
	if err != nil {
		iv.logger.Warn("failed to record interview", "interview", s.ID, "err", err)
	}
}

func (iv *Interviewer) persist(ctx context.Context, id string, latency time.Duration, turns ...domain.TurnRecord) {
	if iv.transcripts == nil {
		return
	}
	for i := range turns {
		if turns[i].Role == domain.RoleAssistant {
			turns[i].Provider = iv.provider
			turns[i].LatencyMs = latency.Milliseconds()
		}
	}
	if err := iv.transcripts.AddTurns(ctx, id, turns...); err != nil {
		iv.logger.Warn("failed to record turns", "interview", id, "err", err)
	}
}
