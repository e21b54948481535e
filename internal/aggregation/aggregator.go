// Package aggregation merges the raw per-agent result sets of one
// coordination round into a single deduplicated, attributed corpus.
package aggregation

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/searxng"
)

// Synthesizer produces a combined summary from the agent summaries. The LLM
// client satisfies it; aggregation works without one.
type Synthesizer interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Content is the aggregate of one coordination round. It is derived data,
// recomputed each round and never mutated after creation.
type Content struct {
	Summary      string
	KeyPoints    []string
	Sources      []searxng.Result // deduplicated, sorted by relevance desc
	ByAgent      map[string]*agents.Result
	Confidence   float64 // 0..1
	Completeness float64 // successful agents / total agents
}

// Aggregator builds Content from agent results.
type Aggregator struct {
	synth  Synthesizer
	logger *zap.Logger
}

// NewAggregator creates an aggregator. synth may be nil; the concatenated
// per-agent summaries are used instead.
func NewAggregator(synth Synthesizer, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{synth: synth, logger: logger}
}

// Aggregate deduplicates and combines the agent results. Aggregating an
// already-deduplicated set yields the same set.
func (a *Aggregator) Aggregate(ctx context.Context, results []*agents.Result) *Content {
	content := &Content{
		ByAgent: make(map[string]*agents.Result, len(results)),
	}

	successful := 0
	totalRaw := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		content.ByAgent[r.AgentName] = r
		if r.Status != agents.StatusError {
			successful++
		}
		totalRaw += len(r.Results)
	}

	content.Sources = dedupe(results)
	content.Summary = a.summarize(ctx, results)
	content.KeyPoints = keyPoints(results)
	content.Confidence = confidence(content.Sources, results, successful)
	if len(content.ByAgent) > 0 {
		content.Completeness = float64(successful) / float64(len(content.ByAgent))
	}

	a.logger.Debug("Aggregated round results",
		zap.Int("agents", len(content.ByAgent)),
		zap.Int("raw_results", totalRaw),
		zap.Int("deduped_sources", len(content.Sources)),
		zap.Float64("confidence", content.Confidence),
		zap.Float64("completeness", content.Completeness),
	)
	return content
}

// dedupe collapses results by (normalized URL, lowercased title), keeping
// the highest-relevance duplicate, sorted by relevance descending.
func dedupe(results []*agents.Result) []searxng.Result {
	type slot struct{ idx int }
	seen := make(map[string]slot)
	var out []searxng.Result

	for _, ar := range results {
		if ar == nil {
			continue
		}
		for _, r := range ar.Results {
			key := DedupKey(r)
			if s, dup := seen[key]; dup {
				if r.Relevance > out[s.idx].Relevance {
					out[s.idx] = r
				}
				continue
			}
			seen[key] = slot{idx: len(out)}
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	return out
}

// DedupKey is the identity of a result for aggregation purposes.
func DedupKey(r searxng.Result) string {
	return NormalizeURL(r.URL) + "|" + strings.ToLower(strings.TrimSpace(r.Title))
}

// NormalizeURL lowercases scheme and host, strips fragments, tracking
// params and trailing slashes so mirror links collapse.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "ref" || param == "fbclid" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// summarize prefers external synthesis when configured, falling back to the
// concatenated per-agent summaries.
func (a *Aggregator) summarize(ctx context.Context, results []*agents.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r != nil && r.Summary != "" {
			parts = append(parts, r.Summary)
		}
	}
	joined := strings.Join(parts, "\n")
	if a.synth == nil || joined == "" {
		return joined
	}

	prompt := fmt.Sprintf(
		"Combine the following research findings into one coherent summary:\n\n%s",
		joined,
	)
	summary, err := a.synth.Generate(ctx, prompt, 0.3, 512)
	if err != nil {
		a.logger.Warn("Synthesis unavailable, using concatenated summaries", zap.Error(err))
		return joined
	}
	return summary
}

// keyPoints extracts up to ten distinct highlights: the leading 1-2
// sentences over 20 chars from each agent summary plus each agent's top two
// snippets.
func keyPoints(results []*agents.Result) []string {
	seen := make(map[string]struct{})
	var points []string

	add := func(p string) bool {
		p = strings.TrimSpace(p)
		if len(p) <= 20 {
			return false
		}
		lower := strings.ToLower(p)
		if _, dup := seen[lower]; dup {
			return false
		}
		seen[lower] = struct{}{}
		points = append(points, p)
		return len(points) >= 10
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		for i, sentence := range sentences(r.Summary) {
			if i >= 2 {
				break
			}
			if add(sentence) {
				return points
			}
		}
		for i, hit := range r.Results {
			if i >= 2 {
				break
			}
			if add(hit.Snippet) {
				return points
			}
		}
	}
	return points
}

func sentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s+".")
		}
	}
	return out
}

// confidence blends result volume against an expectation of five hits per
// agent with the average relevance of the deduplicated corpus.
func confidence(sources []searxng.Result, results []*agents.Result, successful int) float64 {
	if successful == 0 || len(sources) == 0 {
		return 0
	}

	avgPerAgent := float64(len(sources)) / float64(successful)
	volume := avgPerAgent / 5
	if volume > 1 {
		volume = 1
	}

	var sum float64
	for _, s := range sources {
		sum += s.Relevance
	}
	avgRelevance := sum / float64(len(sources))

	return 0.4*volume + 0.6*avgRelevance
}
