package domain

import "context"

// Provider is a hosted or local chat-completion backend (openai, groq,
// google, ollama, claude).
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Models() []string
	Healthy(ctx context.Context) error
}

// Generator is the single capability the interview core needs from an LLM:
// turn a prompt plus the running conversation into the next reply.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Turn) (string, error)
}

// Chat message roles. Turn roles map onto the last two.
const (
	MessageSystem    = "system"
	MessageUser      = "user"
	MessageAssistant = "assistant"
)

type ChatRequest struct {
	Messages    []Message
	Model       string // empty selects the provider's default model
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Content      string
	FinishReason string // stop | length
	Usage        Usage
	LatencyMs    int64
	Provider     string // set by a failover chain to the provider that answered
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
