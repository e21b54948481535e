package searxng

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openscout/orchestrator/internal/circuitbreaker"
)

// Result is one normalized search hit. Immutable once returned.
type Result struct {
	Title       string                 `json:"title"`
	URL         string                 `json:"url"`
	Snippet     string                 `json:"content"`
	Engine      string                 `json:"engine"`
	Relevance   float64                `json:"score"`
	PublishedAt *time.Time             `json:"publishedDate,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Results is the response for a single query.
type Results struct {
	Query        string   `json:"query"`
	Results      []Result `json:"results"`
	Suggestions  []string `json:"suggestions"`
	TotalResults int      `json:"number_of_results"`
}

// Options narrow a query. Zero values mean "instance default".
type Options struct {
	Engines    []string
	Categories []string
	Language   string
	Page       int
	TimeRange  string // day, week, month, year
	SafeSearch *int   // 0, 1 or 2; nil applies the configured default
}

// Config for the transport.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RateLimit   float64 // requests per second; 0 disables limiting
	RateBurst   int
	DefaultLang string // applied when Options.Language is empty
	SafeSearch  int    // applied when Options.SafeSearch is nil
}

func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://searxng:8080",
		Timeout:     15 * time.Second,
		RateLimit:   4,
		RateBurst:   8,
		DefaultLang: "en",
	}
}

// Client issues single queries against a SearxNG instance. It performs no
// retries; callers wrap it in the retry handler.
type Client struct {
	cfg     Config
	httpw   *circuitbreaker.HTTPWrapper
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a transport client. The breaker wrapper is shared with
// other consumers of the same SearxNG instance.
func NewClient(cfg Config, httpw *circuitbreaker.HTTPWrapper, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, NewError(KindConfiguration, "base URL is required", nil)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, NewError(KindConfiguration, "invalid base URL", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if httpw == nil {
		client := &http.Client{Timeout: cfg.Timeout}
		httpw = circuitbreaker.NewHTTPWrapper(client, "searxng", "search", circuitbreaker.GetSearchConfig(), logger)
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{cfg: cfg, httpw: httpw, limiter: limiter, logger: logger}, nil
}

// Search runs one query and returns normalized results or a typed error.
func (c *Client) Search(ctx context.Context, query string, opts Options) (*Results, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewError(KindInvalidQuery, "empty query", nil)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewError(KindTimeout, "rate limiter wait aborted", err)
		}
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	if len(opts.Engines) > 0 {
		q.Set("engines", strings.Join(opts.Engines, ","))
	}
	if len(opts.Categories) > 0 {
		q.Set("categories", strings.Join(opts.Categories, ","))
	}
	lang := opts.Language
	if lang == "" {
		lang = c.cfg.DefaultLang
	}
	if lang != "" {
		q.Set("language", lang)
	}
	if opts.Page > 1 {
		q.Set("pageno", strconv.Itoa(opts.Page))
	}
	if opts.TimeRange != "" {
		q.Set("time_range", opts.TimeRange)
	}
	safeSearch := c.cfg.SafeSearch
	if opts.SafeSearch != nil {
		safeSearch = *opts.SafeSearch
	}
	q.Set("safesearch", strconv.Itoa(safeSearch))

	reqURL := fmt.Sprintf("%s/search?%s", strings.TrimRight(c.cfg.BaseURL, "/"), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, NewError(KindInvalidQuery, "building request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewError(KindRateLimit, "searxng rate limited", nil)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, NewError(KindInvalidQuery, fmt.Sprintf("query rejected: %q", query), nil)
	case resp.StatusCode >= 500:
		return nil, NewError(KindServer, fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return nil, NewError(KindServer, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, NewError(KindParsing, "decoding response", err)
	}
	out := wire.toResults(query)
	normalize(out)

	c.logger.Debug("searxng query complete",
		zap.String("query", query),
		zap.Int("results", len(out.Results)),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

// wireResult is the response shape as instances actually emit it:
// publishedDate arrives in several formats, so it is taken as a string
// and parsed leniently. An unparsable date drops the date, not the hit.
type wireResult struct {
	Title       string                 `json:"title"`
	URL         string                 `json:"url"`
	Snippet     string                 `json:"content"`
	Engine      string                 `json:"engine"`
	Relevance   float64                `json:"score"`
	PublishedAt string                 `json:"publishedDate"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type wireResponse struct {
	Results      []wireResult `json:"results"`
	Suggestions  []string     `json:"suggestions"`
	TotalResults int          `json:"number_of_results"`
}

func (w wireResponse) toResults(query string) *Results {
	out := &Results{
		Query:        query,
		Results:      make([]Result, 0, len(w.Results)),
		Suggestions:  w.Suggestions,
		TotalResults: w.TotalResults,
	}
	for _, wr := range w.Results {
		res := Result{
			Title:     wr.Title,
			URL:       wr.URL,
			Snippet:   wr.Snippet,
			Engine:    wr.Engine,
			Relevance: wr.Relevance,
			Metadata:  wr.Metadata,
		}
		if wr.PublishedAt != "" {
			if t, ok := parsePublished(wr.PublishedAt); ok {
				res.PublishedAt = &t
			}
		}
		out.Results = append(out.Results, res)
	}
	return out
}

// publishedLayouts covers the date shapes observed across engines.
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parsePublished(s string) (time.Time, bool) {
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalize maps relevance into [0,1) and drops entries without a URL.
// SearxNG engine scores are unbounded, so every value goes through the
// same squash; a single monotonic map keeps relative order intact.
func normalize(r *Results) {
	kept := r.Results[:0]
	for _, res := range r.Results {
		if res.URL == "" {
			continue
		}
		if res.Relevance < 0 {
			res.Relevance = 0
		}
		res.Relevance = res.Relevance / (1 + res.Relevance)
		kept = append(kept, res)
	}
	r.Results = kept
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, "request deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(KindTimeout, "request canceled", err)
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return NewError(KindConnection, "search service unavailable", err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return NewError(KindTimeout, "request timed out", err)
	}
	return NewError(KindConnection, "request failed", err)
}
