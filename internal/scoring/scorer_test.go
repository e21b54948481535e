package scoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/aggregation"
	"github.com/openscout/orchestrator/internal/searxng"
)

func corpus(results ...searxng.Result) *aggregation.Content {
	return &aggregation.Content{
		Sources:      results,
		Confidence:   0.7,
		Completeness: 1.0,
	}
}

func result(title, url, snippet, engine string, relevance float64) searxng.Result {
	return searxng.Result{
		Title:     title,
		URL:       url,
		Snippet:   snippet,
		Engine:    engine,
		Relevance: relevance,
	}
}

func TestScoreRanksDenselyByFinalScore(t *testing.T) {
	scorer := NewScorer(NewStore(DefaultConfig()), zaptest.NewLogger(t))

	content := corpus(
		result("Quantum computing overview", "https://en.wikipedia.org/wiki/Quantum_computing",
			"Quantum computing uses qubits to perform computation. According to recent research the field has grown rapidly since superconducting devices matured.",
			"wikipedia", 0.9),
		result("Quantum computing tutorial", "https://example.com/qc",
			"A short quantum computing tutorial covering gates and circuits with worked examples and exercises for self study.",
			"duckduckgo", 0.6),
		result("Quantum hardware notes", "http://blog.example.net/quantum",
			"Some quantum notes.",
			"duckduckgo", 0.3),
	)

	scored := scorer.Score(content, "quantum computing", agents.ResearchContext{})
	if len(scored) != 3 {
		t.Fatalf("expected 3 scored results, got %d", len(scored))
	}
	for i, sr := range scored {
		if sr.Rank != i+1 {
			t.Errorf("result %d: rank = %d, want %d", i, sr.Rank, i+1)
		}
		if i > 0 && scored[i-1].FinalScore < sr.FinalScore {
			t.Errorf("ranking not descending at position %d: %.3f < %.3f",
				i, scored[i-1].FinalScore, sr.FinalScore)
		}
	}
	if scored[0].URL != "https://en.wikipedia.org/wiki/Quantum_computing" {
		t.Errorf("expected the authoritative high-relevance result first, got %q", scored[0].URL)
	}
}

func TestScoreFiltersOffTopicResults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverlapFloor = 0.5
	scorer := NewScorer(NewStore(cfg), zaptest.NewLogger(t))

	content := corpus(
		result("Quantum computing explained", "https://example.com/a",
			"An introduction to quantum computing and its applications in cryptography and simulation.",
			"google", 0.8),
		result("Best pizza recipes", "https://example.com/b",
			"The crispiest homemade pizza dough starts with a long cold fermentation and a very hot oven stone.",
			"google", 0.8),
	)

	scored := scorer.Score(content, "quantum computing", agents.ResearchContext{})
	if len(scored) != 1 {
		t.Fatalf("expected off-topic result to be filtered, got %d results", len(scored))
	}
	if scored[0].URL != "https://example.com/a" {
		t.Errorf("wrong survivor after filtering: %q", scored[0].URL)
	}
}

func TestScoreTierAssignment(t *testing.T) {
	scored := []ScoredResult{
		{FinalScore: 0.85},
		{FinalScore: 0.8},
		{FinalScore: 0.65},
		{FinalScore: 0.45},
		{FinalScore: 0.1},
	}
	assignTiers(DefaultConfig().Tiers, scored)

	want := []string{TierExcellent, TierExcellent, TierGood, TierFair, TierPoor}
	for i, sr := range scored {
		if sr.Tier != want[i] {
			t.Errorf("score %.2f: tier = %q, want %q", sr.FinalScore, sr.Tier, want[i])
		}
	}
}

func TestScoreBeginnerBoost(t *testing.T) {
	scorer := NewScorer(NewStore(DefaultConfig()), zaptest.NewLogger(t))

	beginner := result("Quantum computing introduction for beginners", "https://example.com/intro",
		"A gentle introduction to quantum computing basics, starting from classical bits and building up to qubits.",
		"google", 0.7)
	plain := result("Quantum computing paper", "https://example.com/paper",
		"We analyze decoherence channels in transmon qubit arrays under realistic quantum computing noise models.",
		"google", 0.7)

	rctx := agents.ResearchContext{UserLevel: "beginner"}
	a := scorer.Score(corpus(beginner), "quantum computing", rctx)
	b := scorer.Score(corpus(plain), "quantum computing", rctx)

	if a[0].Breakdown.ContextBoosts <= b[0].Breakdown.ContextBoosts {
		t.Errorf("beginner-friendly result boost %.3f not above plain result boost %.3f",
			a[0].Breakdown.ContextBoosts, b[0].Breakdown.ContextBoosts)
	}
}

func TestScoreDiversityAdjustment(t *testing.T) {
	scorer := NewScorer(NewStore(DefaultConfig()), zaptest.NewLogger(t))

	content := corpus(
		result("Quantum computing A", "https://a.example.com/1",
			"Quantum computing article one with a reasonably detailed snippet describing qubit fundamentals.",
			"google", 0.8),
		result("Quantum computing B", "https://a.example.com/2",
			"Quantum computing article two with a reasonably detailed snippet describing gate operations.",
			"google", 0.8),
		result("Quantum computing C", "https://b.example.org/1",
			"Quantum computing article three with a reasonably detailed snippet describing error correction.",
			"brave", 0.8),
	)

	scored := scorer.Score(content, "quantum computing", agents.ResearchContext{})

	var unique *ScoredResult
	for i := range scored {
		if scored[i].Engine == "brave" {
			unique = &scored[i]
		}
	}
	if unique == nil {
		t.Fatal("brave result missing from scored output")
	}
	if unique.Breakdown.Adjustments <= 0 {
		t.Errorf("unique engine got no diversity adjustment: %.3f", unique.Breakdown.Adjustments)
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Relevance = 0.9
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for weights not summing to 1.0")
	}

	cfg = DefaultConfig()
	cfg.Tiers.Good = 0.9
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-decreasing tier thresholds")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	data := []byte("tiers:\n  excellent: 0.9\n  good: 0.7\n  fair: 0.5\noverlap_floor: 0.2\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Tiers.Excellent != 0.9 || cfg.OverlapFloor != 0.2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// Untouched sections keep defaults.
	if cfg.Weights.Relevance != DefaultConfig().Weights.Relevance {
		t.Errorf("weights should keep defaults, got %.2f", cfg.Weights.Relevance)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("overlap_floor: 0.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Watch(ctx, path, zaptest.NewLogger(t))
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("overlap_floor: 0.3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.Get().OverlapFloor == 0.3 {
			cancel()
			<-done
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("weights not reloaded after file write")
}
