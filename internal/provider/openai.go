package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"interviewsim/internal/domain"
	"interviewsim/internal/httpclient"
)

// Endpoints and default models of the OpenAI-compatible hosted APIs.
const (
	OpenAIBase = "https://api.openai.com/v1"
	GroqBase   = "https://api.groq.com/openai/v1"
	GoogleBase = "https://generativelanguage.googleapis.com/v1beta/openai"

	OpenAIModel = "gpt-3.5-turbo"
	GroqModel   = "mixtral-8x7b-32768"
	GoogleModel = "gemini-pro"
)

// OpenAI implements domain.Provider for OpenAI-compatible chat completion
// APIs. Groq and Google Gemini are served by the same client under their own names.
type OpenAI struct {
	name    string
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	retrier *httpclient.Retrier
	logger  *slog.Logger
}

type OpenAIConfig struct {
	Name       string // provider identifier, "openai" when empty
	APIKey     string
	APIBase    string
	Model      string
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = OpenAIBase
	}
	if cfg.Model == "" {
		cfg.Model = OpenAIModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := httpclient.Shared(httpclient.DefaultTimeout)
	return &OpenAI{
		name:    cfg.Name,
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		client:  client,
		retrier: &httpclient.Retrier{
			Client:     client,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.Backoff,
			Logger:     cfg.Logger.With("provider", cfg.Name),
		},
		logger: cfg.Logger,
	}
}

// NewGroq returns the Groq flavour of the OpenAI-compatible client.
func NewGroq(cfg OpenAIConfig) *OpenAI {
	cfg.Name = "groq"
	if cfg.APIBase == "" {
		cfg.APIBase = GroqBase
	}
	if cfg.Model == "" {
		cfg.Model = GroqModel
	}
	return NewOpenAI(cfg)
}

// NewGoogle returns a client for Gemini's OpenAI-compatible endpoint.
func NewGoogle(cfg OpenAIConfig) *OpenAI {
	cfg.Name = "google"
	if cfg.APIBase == "" {
		cfg.APIBase = GoogleBase
	}
	if cfg.Model == "" {
		cfg.Model = GoogleModel
	}
	return NewOpenAI(cfg)
}

func (o *OpenAI) Name() string     { return o.name }
func (o *OpenAI) Models() []string { return []string{o.model} }

func (o *OpenAI) Healthy(ctx context.Context) error {
	if o.apiKey == "" {
		return fmt.Errorf("%s: API key not set", o.name)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s not reachable: %w", o.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: invalid API key", o.name)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", o.name, resp.StatusCode)
	}
	return nil
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Stream      bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (o *OpenAI) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("%s: API key not set", o.name)
	}
	model := req.Model
	if model == "" {
		model = o.model
	}

	msgs := make([]oaiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, oaiMessage{Role: m.Role, Content: m.Content})
	}

	body := oaiRequest{
		Model:    model,
		Messages: msgs,
		Stream:   false,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	start := time.Now()
	resp, err := o.retrier.Do(ctx, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		return httpReq, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", o.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: %w", o.name, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("%s: response has no choices", o.name)
	}

	choice := oaiResp.Choices[0]
	o.logger.Debug("chat completion", "provider", o.name, "model", model,
		"tokens", oaiResp.Usage.TotalTokens, "finish", choice.FinishReason)
	return &domain.ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: domain.Usage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}
