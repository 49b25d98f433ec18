package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"interviewsim/internal/domain"
	"interviewsim/internal/httpclient"
)

// OpenAIConfig configures a remote embeddings endpoint.
type OpenAIConfig struct {
	Name       string // reported by Name(), "openai" or "ollama"
	APIBase    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// OpenAI calls an OpenAI-compatible /embeddings endpoint. Responses in the
// Ollama shape ({"embedding": [...]}) are accepted as well, so the same
// client serves both.
type OpenAI struct {
	name    string
	apiBase string
	apiKey  string
	model   string
	retrier *httpclient.Retrier
	dim     atomic.Int64
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = httpclient.DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAI{
		name:    cfg.Name,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		retrier: &httpclient.Retrier{
			Client:     httpclient.Shared(cfg.Timeout),
			MaxRetries: cfg.MaxRetries,
			Logger:     cfg.Logger,
		},
	}
}

func (o *OpenAI) Name() string { return o.name }

// ID is the provider and model, which together fix the vector size.
func (o *OpenAI) ID() string { return o.name + "/" + o.model }

// Dimension is unknown until the first successful Embed.
func (o *OpenAI) Dimension() int { return int(o.dim.Load()) }

type embedRequest struct {
	Input  string `json:"input,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model"`
}

func (o *OpenAI) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	body, err := json.Marshal(embedRequest{Input: text, Prompt: text, Model: o.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := o.retrier.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+o.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", o.name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: read body: %w", o.name, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s embeddings %d: %s", o.name, resp.StatusCode, string(payload))
	}

	vec, err := decodeEmbedding(payload)
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", o.name, err)
	}
	o.dim.CompareAndSwap(0, int64(len(vec)))
	return vec, nil
}

func decodeEmbedding(payload []byte) (domain.Embedding, error) {
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data) > 0 && len(out.Data[0].Embedding) > 0 {
		return out.Data[0].Embedding, nil
	}
	if len(out.Embedding) > 0 {
		return out.Embedding, nil
	}
	return nil, errors.New("no embedding returned")
}
