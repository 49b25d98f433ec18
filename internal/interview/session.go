// Package interview runs mock interviews: one Session per run holding the
// conversation, and an Interviewer that turns answers into the next question.
package interview

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"interviewsim/internal/domain"
)

const DefaultMaxTurns = 50

// SessionConfig describes a new interview run.
type SessionConfig struct {
	ID         string   // default: random UUID
	Domains    []string // empty means every domain
	Difficulty string
	MaxTurns   int // default: 50
}

// Session owns the conversation history of a single interview. History is
// append-only; callers only ever see copies.
type Session struct {
	ID         string
	Domains    []string
	Difficulty string
	CreatedAt  time.Time

	maxTurns int

	mu    sync.Mutex
	turns []domain.Turn
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &Session{
		ID:         cfg.ID,
		Domains:    append([]string(nil), cfg.Domains...),
		Difficulty: cfg.Difficulty,
		CreatedAt:  time.Now(),
		maxTurns:   cfg.MaxTurns,
	}
}

// AppendTurn adds one turn at the end of the history.
func (s *Session) AppendTurn(role domain.Role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(time.Now(), domain.Turn{Role: role, Text: text})
}

// appendExchange adds a candidate answer and the interviewer reply together:
// either both are stored or neither is.
func (s *Session) appendExchange(answer, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns)+2 > s.maxTurns {
		return domain.ErrInterviewFinished
	}
	now := time.Now()
	if err := s.appendLocked(now, domain.Turn{Role: domain.RoleUser, Text: answer}); err != nil {
		return err
	}
	return s.appendLocked(now, domain.Turn{Role: domain.RoleAssistant, Text: reply})
}

func (s *Session) appendLocked(now time.Time, t domain.Turn) error {
	if !t.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidConfiguration, t.Role)
	}
	if len(s.turns) >= s.maxTurns {
		return domain.ErrInterviewFinished
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = now
	}
	s.turns = append(s.turns, t)
	return nil
}

// Turns returns a copy of the full history.
func (s *Session) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Recent returns a copy of the last n turns.
func (s *Session) Recent(n int) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return nil
	}
	start := max(len(s.turns)-n, 0)
	out := make([]domain.Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Remaining is the number of turns that can still be appended.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxTurns - len(s.turns)
}

// Finished reports whether another question/answer exchange would exceed the limit.
func (s *Session) Finished() bool {
	return s.Remaining() < 2
}

// RenderHistory formats the last maxTurns turns as a transcript, one
// "Interviewer:" or "Candidate:" block per turn.
func (s *Session) RenderHistory(maxTurns int) string {
	if maxTurns <= 0 {
		return ""
	}
	turns := s.Recent(maxTurns)
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(speaker(t.Role))
		sb.WriteString(": ")
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func speaker(r domain.Role) string {
	if r == domain.RoleAssistant {
		return "Interviewer"
	}
	return "Candidate"
}
