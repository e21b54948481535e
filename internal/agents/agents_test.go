package agents

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/openscout/orchestrator/internal/retry"
	"github.com/openscout/orchestrator/internal/searxng"
)

// fakeSearcher routes queries to canned responses. Queries not covered by
// respond fail with a connection error.
type fakeSearcher struct {
	calls   []string
	respond func(query string) (*searxng.Results, error)
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts searxng.Options) (*searxng.Results, error) {
	f.calls = append(f.calls, query)
	if f.respond != nil {
		return f.respond(query)
	}
	return nil, searxng.NewError(searxng.KindConnection, "refused", nil)
}

func hit(url, title string, relevance float64) searxng.Result {
	return searxng.Result{
		Title:     title,
		URL:       url,
		Snippet:   "A sufficiently long snippet describing the subject matter in detail.",
		Engine:    "duckduckgo",
		Relevance: relevance,
	}
}

func fastRetrier(t *testing.T) *retry.Handler {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = 1
	return retry.NewHandler(policy, zaptest.NewLogger(t))
}

func TestGeneralAgentHappyPath(t *testing.T) {
	n := 0
	fs := &fakeSearcher{respond: func(query string) (*searxng.Results, error) {
		n++
		return &searxng.Results{Results: []searxng.Result{
			hit(fmt.Sprintf("https://example.com/%d", n), "Quantum Computing Basics", 0.9),
		}}, nil
	}}

	agent := NewGeneralAgent(Deps{Searcher: fs, Retrier: fastRetrier(t), Logger: zaptest.NewLogger(t)})
	res, err := agent.Research(context.Background(), "quantum computing", ResearchContext{UserLevel: "beginner"})
	if err != nil {
		t.Fatalf("Research failed: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("Expected success, got %s", res.Status)
	}
	if res.QueriesRun < 6 {
		t.Errorf("Expected at least 6 query variants, got %d", res.QueriesRun)
	}
	if res.QueriesOK != res.QueriesRun {
		t.Errorf("Expected all queries to succeed, got %d/%d", res.QueriesOK, res.QueriesRun)
	}
	if len(res.Results) == 0 || res.Summary == "" {
		t.Error("Expected merged results and a summary")
	}
}

func TestGeneralAgentFallbackRecovers(t *testing.T) {
	fs := &fakeSearcher{respond: func(query string) (*searxng.Results, error) {
		if strings.Contains(query, "beginner guide overview") {
			return &searxng.Results{Results: []searxng.Result{
				hit("https://example.com/fallback", "Intro Guide", 0.7),
			}}, nil
		}
		return nil, searxng.NewError(searxng.KindServer, "500", nil)
	}}

	agent := NewGeneralAgent(Deps{Searcher: fs, Retrier: fastRetrier(t), Logger: zaptest.NewLogger(t)})
	res, err := agent.Research(context.Background(), "gauge theory", ResearchContext{})
	if err != nil {
		t.Fatalf("Expected fallback recovery, got %v", err)
	}
	if !res.FallbackUsed {
		t.Error("Expected FallbackUsed to be set")
	}
	if res.Status != StatusPartial {
		t.Errorf("Expected partial status after fallback, got %s", res.Status)
	}
}

func TestGeneralAgentTotalFailure(t *testing.T) {
	fs := &fakeSearcher{}
	agent := NewGeneralAgent(Deps{Searcher: fs, Retrier: fastRetrier(t), Logger: zaptest.NewLogger(t)})
	res, err := agent.Research(context.Background(), "anything at all", ResearchContext{})
	if err == nil {
		t.Fatal("Expected an error when every variant and fallback fails")
	}
	if res.Status != StatusError {
		t.Errorf("Expected error status, got %s", res.Status)
	}
}

func TestSpecializedAgentFallbackCapsAndPenalizes(t *testing.T) {
	fs := &fakeSearcher{respond: func(query string) (*searxng.Results, error) {
		// Optimized academic variants all fail; the plain topic succeeds.
		if strings.Contains(query, "paper") || strings.Contains(query, "review") ||
			strings.Contains(query, "journal") || strings.Contains(query, "method") ||
			strings.Contains(query, "stud") || strings.Contains(query, "findings") {
			return nil, searxng.NewError(searxng.KindTimeout, "slow", nil)
		}
		return &searxng.Results{Results: []searxng.Result{
			hit("https://a.example.com", "A", 1.0),
			hit("https://b.example.com", "B", 0.9),
			hit("https://c.example.com", "C", 0.8),
			hit("https://d.example.com", "D", 0.7),
		}}, nil
	}}

	agent := NewAcademicAgent(Deps{Searcher: fs, Retrier: fastRetrier(t), Logger: zaptest.NewLogger(t)})
	res, err := agent.Research(context.Background(), "protein folding", ResearchContext{})
	if err != nil {
		t.Fatalf("Specialized fallback should not error: %v", err)
	}
	if len(res.Results) > 3 {
		t.Errorf("Fallback results must be capped at 3, got %d", len(res.Results))
	}
	for _, r := range res.Results {
		if r.Relevance > 0.61 {
			t.Errorf("Fallback results must carry a relevance penalty, got %f", r.Relevance)
		}
	}
	if res.Status != StatusPartial {
		t.Errorf("Expected partial status, got %s", res.Status)
	}
}

func TestResultFilterDropsThinResults(t *testing.T) {
	f := defaultFilter()
	in := []searxng.Result{
		hit("https://ok.example.com", "Good", 0.8),
		{URL: "https://thin.example.com", Title: "Thin", Snippet: "short", Relevance: 0.9},
		{URL: "https://untitled.example.com", Snippet: strings.Repeat("x", 80), Relevance: 0.9},
		{Title: "No URL", Snippet: strings.Repeat("x", 80), Relevance: 0.9},
	}
	out := f.Apply(in)
	if len(out) != 1 || out[0].URL != "https://ok.example.com" {
		t.Errorf("Expected only the well-formed result, got %v", out)
	}
}

func TestOptimizersProduceEnoughVariants(t *testing.T) {
	rctx := ResearchContext{UserLevel: "beginner", LearningStyle: "visual"}
	for name, opt := range map[string]QueryOptimizer{
		"general":       generalOptimizer,
		"academic":      academicOptimizer,
		"computational": computationalOptimizer,
		"video":         videoOptimizer,
		"community":     communityOptimizer,
	} {
		variants := opt("machine learning", rctx)
		if len(variants) < 6 || len(variants) > 10 {
			t.Errorf("%s: expected 6-10 variants, got %d", name, len(variants))
		}
	}
}

func TestHeuristicFallbackRewrites(t *testing.T) {
	rewrites := HeuristicFallback{}.Rewrites("advanced quantum error correction techniques")
	if len(rewrites) != 3 {
		t.Fatalf("Expected 3 escalating rewrites, got %d: %v", len(rewrites), rewrites)
	}
	if !strings.Contains(rewrites[0], "basic") {
		t.Errorf("First rewrite should simplify jargon, got %q", rewrites[0])
	}
	if len(strings.Fields(rewrites[1])) != 3 {
		t.Errorf("Second rewrite should shorten to three terms, got %q", rewrites[1])
	}
	if !strings.HasSuffix(rewrites[2], "beginner guide overview") {
		t.Errorf("Last rewrite should ask for an accessible overview, got %q", rewrites[2])
	}
}

func TestDisplayNameDeterministic(t *testing.T) {
	a := DisplayName("topic-123", 2)
	b := DisplayName("topic-123", 2)
	if a == "" || a != b {
		t.Errorf("Display names must be deterministic, got %q and %q", a, b)
	}
	if DisplayName("topic-123", 3) == a {
		// Different slots for the same topic should normally differ;
		// adjacent indices never collide in a 30-name pool.
		t.Error("Adjacent agent slots mapped to the same display name")
	}
}
