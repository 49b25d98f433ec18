package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"interviewsim/internal/domain"
	"interviewsim/internal/httpclient"
)

// pointNamespace derives stable Qdrant point IDs from chunk keys, since
// Qdrant only accepts integers or UUIDs as IDs.
var pointNamespace = uuid.MustParse("6f1c2b7e-3f0a-4e59-9a5e-2d4c8b1e7a90")

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Qdrant is a REST client to a Qdrant collection using cosine distance.
// The collection is created on first upsert, once the dimension is known.
type Qdrant struct {
	url        string
	apiKey     string
	collection string
	retrier    *httpclient.Retrier
	logger     *slog.Logger

	mu      sync.Mutex
	created bool
}

func NewQdrant(cfg QdrantConfig) *Qdrant {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = "interviewsim"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Qdrant{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		logger:     cfg.Logger,
		retrier: &httpclient.Retrier{
			Client:     httpclient.Shared(cfg.Timeout),
			MaxRetries: 2,
			Logger:     cfg.Logger,
		},
	}
}

func pointID(c domain.Chunk) string {
	return uuid.NewSHA1(pointNamespace, []byte(c.Key())).String()
}

type qdrantPayload struct {
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Domain      string `json:"domain"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
}

func (p qdrantPayload) chunk() domain.Chunk {
	return domain.Chunk{
		Text:             p.Text,
		Domain:           p.Domain,
		SourceDocumentID: p.DocumentID,
		ChunkIndex:       p.ChunkIndex,
		StartOffset:      p.StartOffset,
	}
}

func (q *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.created {
		return nil
	}
	status, err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusNotFound {
		body := map[string]any{
			"vectors": map[string]any{"size": dim, "distance": "Cosine"},
		}
		if _, err := q.do(ctx, http.MethodPut, "/collections/"+q.collection, body, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		q.logger.Info("qdrant collection created", "collection", q.collection, "dimension", dim)
	}
	q.created = true
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, len(embeddings[0])); err != nil {
		return err
	}

	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":     pointID(c),
			"vector": embeddings[i],
			"payload": qdrantPayload{
				DocumentID:  c.SourceDocumentID,
				ChunkIndex:  c.ChunkIndex,
				Domain:      c.Domain,
				Text:        c.Text,
				StartOffset: c.StartOffset,
			},
		}
	}
	_, err := q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", map[string]any{"points": points}, nil)
	return err
}

const qdrantTieSlack = 10

func (q *Qdrant) Query(ctx context.Context, vector domain.Embedding, vq domain.VectorQuery) ([]domain.RetrievalResult, error) {
	limit := vq.Limit
	if limit <= 0 {
		limit = 10
	}
	// Qdrant breaks score ties arbitrarily at its limit. Fetching extra lets
	// topN apply the chunk-key order to ties that straddle the cut.
	req := map[string]any{
		"vector":       vector,
		"limit":        limit + qdrantTieSlack,
		"with_payload": true,
	}
	if len(vq.Domains) > 0 {
		req["filter"] = map[string]any{
			"must": []any{
				map[string]any{"key": "domain", "match": map[string]any{"any": vq.Domains}},
			},
		}
	}

	var resp struct {
		Result []struct {
			Score   float64       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", req, &resp)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.RetrievalResult{Chunk: r.Payload.chunk(), Score: r.Score})
	}
	return topN(results, limit), nil
}

func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/count", map[string]any{"exact": true}, &resp)
	if status == http.StatusNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *Qdrant) DeleteDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	status, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete?wait=true", body, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func (q *Qdrant) Clear(ctx context.Context) error {
	status, err := q.do(ctx, http.MethodDelete, "/collections/"+q.collection, nil, nil)
	if status == http.StatusNotFound {
		err = nil
	}
	q.mu.Lock()
	q.created = false
	q.mu.Unlock()
	return err
}

func (q *Qdrant) Close() error { return nil }

// do sends a JSON request and decodes the response into out. The status code
// is returned alongside any error so callers can treat 404 as "no collection".
func (q *Qdrant) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
	}

	resp, err := q.retrier.Do(ctx, func() (*http.Request, error) {
		var r io.Reader
		if data != nil {
			r = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, q.url+path, r)
		if err != nil {
			return nil, err
		}
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if q.apiKey != "" {
			req.Header.Set("api-key", q.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s %d: %s", method, path, resp.StatusCode, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant decode: %w", err)
		}
	}
	return resp.StatusCode, nil
}
