package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"interviewsim/internal/httpclient"
)

// WhisperConfig configures the Whisper speech-to-text provider used for spoken answers.
type WhisperConfig struct {
	APIBase    string // e.g., "https://api.openai.com/v1" or "https://api.groq.com/openai/v1"
	APIKey     string
	Model      string // e.g., "whisper-1" (OpenAI) or "whisper-large-v3" (Groq)
	Language   string // optional: ISO-639-1 language code
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
}

// WhisperProvider handles speech-to-text transcription using the OpenAI-compatible Whisper API.
type WhisperProvider struct {
	apiBase  string
	apiKey   string
	model    string
	language string
	retrier  *httpclient.Retrier
	logger   *slog.Logger
}

// NewWhisperProvider creates a new Whisper transcription provider.
func NewWhisperProvider(cfg WhisperConfig) *WhisperProvider {
	if cfg.APIBase == "" {
		cfg.APIBase = OpenAIBase
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WhisperProvider{
		apiBase:  strings.TrimSuffix(cfg.APIBase, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		retrier: &httpclient.Retrier{
			Client:     httpclient.Shared(httpclient.DefaultTimeout),
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.Backoff,
			Logger:     cfg.Logger.With("provider", "whisper"),
		},
		logger: cfg.Logger,
	}
}

// TranscriptionResult contains the result of a transcription.
type TranscriptionResult struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// TranscribeFile transcribes a recorded answer from disk.
func (w *WhisperProvider) TranscribeFile(ctx context.Context, path string) (*TranscriptionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()
	return w.Transcribe(ctx, f, filepath.Base(path))
}

// TranscribeAnswer transcribes a recorded answer and returns its text. A
// recording with no recognisable speech is an error.
func (w *WhisperProvider) TranscribeAnswer(ctx context.Context, path string) (string, error) {
	res, err := w.TranscribeFile(ctx, path)
	if err != nil {
		return "", err
	}
	if res.Text == "" {
		return "", fmt.Errorf("no speech recognised in %s", filepath.Base(path))
	}
	w.logger.Debug("answer transcribed", "file", filepath.Base(path), "chars", len(res.Text))
	return res.Text, nil
}

// Transcribe converts audio data to text.
// filename should include the extension (e.g., "answer.wav").
func (w *WhisperProvider) Transcribe(ctx context.Context, audioData io.Reader, filename string) (*TranscriptionResult, error) {
	// Build multipart form
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audioData); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	writer.WriteField("model", w.model)
	writer.WriteField("response_format", "json")
	if w.language != "" {
		writer.WriteField("language", w.language)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	payload := body.Bytes()

	url := w.apiBase + "/audio/transcriptions"
	resp, err := w.retrier.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("whisper API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("whisper API: %w", &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var result TranscriptionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	result.Text = strings.TrimSpace(result.Text)

	w.logger.Info("transcription complete",
		"text_len", len(result.Text),
		"language", result.Language,
		"duration", result.Duration,
	)

	return &result, nil
}
