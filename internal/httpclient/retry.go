package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

const (
	DefaultMaxRetries = 3
	maxRetryAfter     = 30 * time.Second
)

// StatusError is a non-2xx response that survived all retries.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt (5xx, 429).
func Retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// Retrier executes requests with exponential backoff.
type Retrier struct {
	Client     *http.Client
	MaxRetries int
	// Backoff is the unit the quadratic schedule is multiplied by. Defaults to one second.
	Backoff time.Duration
	Logger  *slog.Logger
}

// DoWithRetry executes an HTTP request with DefaultMaxRetries and one-second
// backoff units, retrying transient errors (network failures, 5xx, 429).
func DoWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	r := &Retrier{Client: client, MaxRetries: DefaultMaxRetries, Logger: logger}
	return r.Do(ctx, buildReq)
}

// Do runs buildReq until it gets a non-retryable response or runs out of attempts.
// buildReq is called once per attempt so request bodies can be re-read.
func (r *Retrier) Do(ctx context.Context, buildReq func() (*http.Request, error)) (*http.Response, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	unit := r.Backoff
	if unit <= 0 {
		unit = time.Second
	}
	client := r.Client
	if client == nil {
		client = Shared(0)
	}

	var lastErr error
	var wait time.Duration

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := wait
			if backoff <= 0 {
				// Exponential backoff with jitter to prevent thundering herd.
				base := time.Duration(attempt*attempt) * unit
				backoff = base + time.Duration(rand.Int64N(int64(base/2+1)))
			}
			logger.Warn("retrying request", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		wait = 0

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt < r.MaxRetries {
				logger.Warn("request failed, will retry", "error", err)
				continue
			}
			return nil, fmt.Errorf("request failed after %d retries: %w", r.MaxRetries, err)
		}

		if Retryable(resp.StatusCode) {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
			wait = retryAfter(resp.Header.Get("Retry-After"))
			if attempt < r.MaxRetries {
				logger.Warn("server error, will retry", "status", resp.StatusCode, "body", string(body))
				continue
			}
			return nil, fmt.Errorf("server error after %d retries: %w", r.MaxRetries, lastErr)
		}

		return resp, nil
	}

	return nil, lastErr
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
