// Package vectordb is a minimal HTTP client for the document index
// sidecar, which embeds text server-side and exposes Qdrant-style
// collection endpoints.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/circuitbreaker"
	ometrics "github.com/openscout/orchestrator/internal/metrics"
)

// Config controls the document index client.
type Config struct {
	Enabled    bool
	Host       string
	Port       int
	Collection string
	TopK       int
	Threshold  float64
	Timeout    time.Duration
}

// Document is one unit of research output persisted to the index.
type Document struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Hit is a scored search match.
type Hit struct {
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Client talks to the index over its HTTP API through the circuit
// breaker. A nil or disabled client turns every call into a no-op so
// callers need no special-casing when the index is absent.
type Client struct {
	cfg   Config
	base  string
	httpw *circuitbreaker.HTTPWrapper
	log   *zap.Logger
}

// NewClient creates a document index client. Zero-valued config fields
// get working defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Collection == "" {
		cfg.Collection = "research_documents"
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:   cfg,
		base:  fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		httpw: circuitbreaker.NewHTTPWrapper(httpClient, "doc-index", "vectordb", circuitbreaker.GetHTTPConfig(), logger),
		log:   logger,
	}
}

// Enabled reports whether calls will actually reach the index.
func (c *Client) Enabled() bool { return c != nil && c.cfg.Enabled }

type upsertRequest struct {
	Points []Document `json:"points"`
}

type upsertResponse struct {
	Status string `json:"status"`
}

// Store upserts documents into the collection. Documents without an ID
// get one assigned. Disabled clients return nil immediately.
func (c *Client) Store(ctx context.Context, docs []Document) error {
	if !c.Enabled() || len(docs) == 0 {
		return nil
	}
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.New().String()
		}
	}

	url := fmt.Sprintf("%s/collections/%s/points", c.base, c.cfg.Collection)
	buf, err := json.Marshal(upsertRequest{Points: docs})
	if err != nil {
		return fmt.Errorf("encode store request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpw.Do(req)
	if err != nil {
		ometrics.DocIndexStores.WithLabelValues("error").Inc()
		return fmt.Errorf("doc index store: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ometrics.DocIndexStores.WithLabelValues("error").Inc()
		return fmt.Errorf("doc index store status %d", resp.StatusCode)
	}

	var r upsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		ometrics.DocIndexStores.WithLabelValues("error").Inc()
		return fmt.Errorf("decode store response: %w", err)
	}
	ometrics.DocIndexStores.WithLabelValues("ok").Inc()
	c.log.Debug("Stored documents",
		zap.Int("count", len(docs)),
		zap.String("collection", c.cfg.Collection),
	)
	return nil
}

type queryRequest struct {
	Query          string                 `json:"query"`
	Limit          int                    `json:"limit"`
	ScoreThreshold *float64               `json:"score_threshold,omitempty"`
	WithPayload    bool                   `json:"with_payload"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
}

type queryPoint struct {
	ID      interface{}            `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

type queryResponse struct {
	Result struct {
		Points []queryPoint `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

// Search runs a semantic query, optionally filtered to one topic.
// Disabled clients return no hits and no error.
func (c *Client) Search(ctx context.Context, query, topicFilter string, threshold float64, limit int) ([]Hit, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = c.cfg.TopK
	}
	if threshold <= 0 {
		threshold = c.cfg.Threshold
	}

	reqBody := queryRequest{Query: query, Limit: limit, WithPayload: true}
	if threshold > 0 {
		reqBody.ScoreThreshold = &threshold
	}
	if topicFilter != "" {
		reqBody.Filter = map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "topic", "match": map[string]interface{}{"value": topicFilter}},
			},
		}
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", c.base, c.cfg.Collection)
	buf, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpw.Do(req)
	if err != nil {
		ometrics.DocIndexSearches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("doc index search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		ometrics.DocIndexSearches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("doc index search status %d", resp.StatusCode)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		ometrics.DocIndexSearches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(qr.Result.Points))
	for _, p := range qr.Result.Points {
		hit := Hit{Score: p.Score, Metadata: p.Payload}
		if p.Payload != nil {
			if content, ok := p.Payload["content"].(string); ok {
				hit.Content = content
			}
		}
		hits = append(hits, hit)
	}
	ometrics.DocIndexSearches.WithLabelValues("ok").Inc()
	return hits, nil
}
