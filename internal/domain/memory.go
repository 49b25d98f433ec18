package domain

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the conversation roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is a single entry of an interview conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore persists finished and running interviews.
type TranscriptStore interface {
	CreateInterview(ctx context.Context, iv Interview) error
	GetInterview(ctx context.Context, id string) (*Interview, error)
	ListInterviews(ctx context.Context, limit int) ([]Interview, error)
	DeleteInterview(ctx context.Context, id string) error

	AddTurns(ctx context.Context, interviewID string, turns ...TurnRecord) error
	GetTurns(ctx context.Context, interviewID string, limit int) ([]TurnRecord, error)

	Close() error
}

type Interview struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Domains    []string  `json:"domains"`
	Difficulty string    `json:"difficulty"`
	Provider   string    `json:"provider"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type TurnRecord struct {
	ID          int64     `json:"id"`
	InterviewID string    `json:"interview_id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Provider    string    `json:"provider,omitempty"`
	LatencyMs   int64     `json:"latency_ms,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
