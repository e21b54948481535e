package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	ometrics "github.com/openscout/orchestrator/internal/metrics"
	"github.com/openscout/orchestrator/internal/retry"
	"github.com/openscout/orchestrator/internal/searxng"
)

// strategy is the static description of one agent.
type strategy struct {
	name       string
	critical   bool
	optimizer  QueryOptimizer
	searchOpts searxng.Options
	filter     ResultFilter
	maxResults int
}

// searchAgent executes a strategy against the shared transport.
type searchAgent struct {
	strategy
	searcher Searcher
	retrier  *retry.Handler
	fallback FallbackStrategy
	logger   *zap.Logger
}

func (a *searchAgent) Name() string   { return a.name }
func (a *searchAgent) Critical() bool { return a.critical }

// Research runs every query variant sequentially through the retry handler,
// merges and filters the hits, and falls back per the agent's criticality
// when nothing came back.
func (a *searchAgent) Research(ctx context.Context, topic string, rctx ResearchContext) (*Result, error) {
	start := time.Now()
	queries := a.optimizer(topic, rctx)

	res := &Result{
		AgentName: a.name,
		Topic:     topic,
		Timestamp: start,
	}

	merged, suggestions := a.runQueries(ctx, queries, res)

	if res.QueriesOK == 0 {
		var err error
		merged, err = a.runFallback(ctx, topic, res)
		if err != nil {
			res.Status = StatusError
			res.Err = err.Error()
			ometrics.AgentRounds.WithLabelValues(a.name, string(StatusError)).Inc()
			ometrics.AgentDuration.WithLabelValues(a.name).Observe(time.Since(start).Seconds())
			return res, err
		}
	}

	res.Results = a.finalize(merged)
	res.Summary = buildSummary(a.name, topic, res.Results)
	res.Subtopics = proposeSubtopics(topic, suggestions, res.Results)

	switch {
	case res.QueriesOK == res.QueriesRun && len(res.Results) > 0 && !res.FallbackUsed:
		res.Status = StatusSuccess
	case len(res.Results) > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusSuccess // all queries ran, topic simply has no hits
	}

	ometrics.AgentRounds.WithLabelValues(a.name, string(res.Status)).Inc()
	ometrics.AgentDuration.WithLabelValues(a.name).Observe(time.Since(start).Seconds())

	a.logger.Debug("Agent round finished",
		zap.String("agent", a.name),
		zap.String("topic", topic),
		zap.Int("queries_ok", res.QueriesOK),
		zap.Int("queries_run", res.QueriesRun),
		zap.Int("results", len(res.Results)),
		zap.Bool("fallback", res.FallbackUsed),
	)
	return res, nil
}

// runQueries executes the optimized variants, tolerating per-query failure.
func (a *searchAgent) runQueries(ctx context.Context, queries []string, res *Result) ([]searxng.Result, []string) {
	var merged []searxng.Result
	var suggestions []string

	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		res.QueriesRun++
		out, err := a.searchOnce(ctx, q)
		if err != nil {
			a.logger.Debug("Query variant failed",
				zap.String("agent", a.name),
				zap.String("query", q),
				zap.Error(err),
			)
			continue
		}
		res.QueriesOK++
		merged = append(merged, out.Results...)
		suggestions = append(suggestions, out.Suggestions...)
	}
	return merged, suggestions
}

func (a *searchAgent) searchOnce(ctx context.Context, query string) (*searxng.Results, error) {
	var out *searxng.Results
	err := a.retrier.Do(ctx, a.name+" search", func(ctx context.Context) error {
		var err error
		out, err = a.searcher.Search(ctx, query, a.searchOpts)
		return err
	})
	return out, err
}

// runFallback recovers from a round where every variant failed. The general
// agent escalates through its rewrite strategy; specialized agents try one
// generalized query capped at three penalized results.
func (a *searchAgent) runFallback(ctx context.Context, topic string, res *Result) ([]searxng.Result, error) {
	if a.critical {
		for _, rewrite := range a.fallback.Rewrites(topic) {
			out, err := a.searchOnce(ctx, rewrite)
			if err != nil {
				continue
			}
			if len(out.Results) > 0 {
				a.logger.Warn("General agent recovered via fallback query",
					zap.String("topic", topic),
					zap.String("rewrite", rewrite),
				)
				res.FallbackUsed = true
				res.QueriesOK++
				return out.Results, nil
			}
		}
		return nil, fmt.Errorf("general agent failed for %q: all query variants and fallbacks exhausted", topic)
	}

	out, err := a.searchOnce(ctx, cleanTopic(topic))
	if err != nil {
		return nil, fmt.Errorf("%s agent failed for %q: %w", a.name, topic, err)
	}
	res.FallbackUsed = true
	res.QueriesOK++

	hits := out.Results
	if len(hits) > 3 {
		hits = hits[:3]
	}
	// Generalized results carry a relevance penalty versus targeted ones.
	penalized := make([]searxng.Result, len(hits))
	for i, h := range hits {
		h.Relevance *= 0.6
		penalized[i] = h
	}
	return penalized, nil
}

// finalize filters, dedupes by URL within the agent, sorts by relevance and
// caps the set.
func (a *searchAgent) finalize(results []searxng.Result) []searxng.Result {
	filtered := a.filter.Apply(results)

	seen := make(map[string]int, len(filtered))
	unique := filtered[:0]
	for _, r := range filtered {
		key := strings.ToLower(r.URL)
		if idx, dup := seen[key]; dup {
			if r.Relevance > unique[idx].Relevance {
				unique[idx] = r
			}
			continue
		}
		seen[key] = len(unique)
		unique = append(unique, r)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Relevance > unique[j].Relevance
	})
	if a.maxResults > 0 && len(unique) > a.maxResults {
		unique = unique[:a.maxResults]
	}
	return unique
}

// buildSummary composes the per-agent summary from the leading snippets.
func buildSummary(agent, topic string, results []searxng.Result) string {
	if len(results) == 0 {
		return ""
	}
	n := len(results)
	if n > 3 {
		n = 3
	}
	parts := make([]string, 0, n)
	for _, r := range results[:n] {
		if s := firstSentence(r.Snippet); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("[%s] %s: %s", agent, topic, strings.Join(parts, " "))
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?"); idx > 0 && idx < len(text)-1 {
		return strings.TrimSpace(text[:idx+1])
	}
	return text
}

// proposeSubtopics derives candidate subtopics from engine suggestions and
// result titles that extend the topic with a new facet.
func proposeSubtopics(topic string, suggestions []string, results []searxng.Result) []string {
	topicLower := strings.ToLower(topic)
	seen := make(map[string]struct{})
	var out []string

	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || len(candidate) > 80 {
			return
		}
		lower := strings.ToLower(candidate)
		if _, dup := seen[lower]; dup {
			return
		}
		seen[lower] = struct{}{}
		out = append(out, candidate)
	}

	for _, s := range suggestions {
		if strings.Contains(strings.ToLower(s), topicLower) {
			add(s)
		}
	}
	for _, r := range results {
		title := strings.ToLower(r.Title)
		if idx := strings.Index(title, topicLower); idx >= 0 {
			// Keep the facet phrase following the topic mention.
			tail := strings.TrimSpace(r.Title[idx+len(topicLower):])
			tail = strings.Trim(tail, ":-–| ")
			if words := strings.Fields(tail); len(words) >= 1 && len(words) <= 5 {
				add(topic + " " + tail)
			}
		}
		if len(out) >= 8 {
			break
		}
	}
	return out
}
