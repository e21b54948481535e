// Package scoring ranks an aggregated corpus with a weighted multi-factor
// model plus context-aware boosts, penalties and a diversity adjustment.
package scoring

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/aggregation"
	"github.com/openscout/orchestrator/internal/searxng"
)

// Tier buckets for final scores.
const (
	TierExcellent = "excellent"
	TierGood      = "good"
	TierFair      = "fair"
	TierPoor      = "poor"
)

// Breakdown records how a final score was assembled.
type Breakdown struct {
	Base          float64
	ContextBoosts float64
	Penalties     float64
	Adjustments   float64
}

// ScoredResult is one ranked entry of the corpus. Rank is a dense 1..N
// ordering by FinalScore descending.
type ScoredResult struct {
	searxng.Result
	FinalScore float64
	Breakdown  Breakdown
	Rank       int
	Tier       string
}

// Scorer applies the scoring model. Weight and tier configuration comes
// from the store, which may be hot-reloaded behind its own lock.
type Scorer struct {
	store  *Store
	logger *zap.Logger
}

// NewScorer creates a scorer over a weight store.
func NewScorer(store *Store, logger *zap.Logger) *Scorer {
	if store == nil {
		store = NewStore(DefaultConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{store: store, logger: logger}
}

// Score ranks the aggregated corpus for a topic. Results whose topical
// overlap falls under the configured floor are filtered out entirely, not
// merely penalized.
func (s *Scorer) Score(content *aggregation.Content, topic string, rctx agents.ResearchContext) []ScoredResult {
	cfg := s.store.Get()
	topicTerms := terms(topic)

	domainCount := make(map[string]int)
	engineCount := make(map[string]int)
	for _, r := range content.Sources {
		domainCount[domain(r.URL)]++
		engineCount[r.Engine]++
	}

	scored := make([]ScoredResult, 0, len(content.Sources))
	seenTitles := make(map[string]struct{})
	filtered := 0

	for _, r := range content.Sources {
		overlap := overlapRatio(topicTerms, r)
		if overlap < cfg.OverlapFloor {
			filtered++
			continue
		}

		base := s.baseScore(cfg.Weights, r, content, domainCount, engineCount)
		boosts := contextBoosts(cfg, r, rctx, overlap)
		penalties := s.penalties(cfg, r, seenTitles)

		final := clamp01(base + boosts - penalties)
		scored = append(scored, ScoredResult{
			Result:     r,
			FinalScore: final,
			Breakdown:  Breakdown{Base: base, ContextBoosts: boosts, Penalties: penalties},
		})

		seenTitles[strings.ToLower(strings.TrimSpace(r.Title))] = struct{}{}
	}

	s.applyDiversityAdjustment(cfg, scored)
	rank(scored)
	assignTiers(cfg.Tiers, scored)

	if filtered > 0 {
		s.logger.Debug("Filtered results below topical overlap floor",
			zap.String("topic", topic),
			zap.Int("filtered", filtered),
		)
	}
	return scored
}

// baseScore is the weighted sum over the ten quality factors.
func (s *Scorer) baseScore(w Weights, r searxng.Result, content *aggregation.Content, domainCount, engineCount map[string]int) float64 {
	return w.Relevance*r.Relevance +
		w.Confidence*content.Confidence +
		w.Quality*qualityFactor(r) +
		w.Recency*recencyFactor(r) +
		w.Uniqueness*uniquenessFactor(r, domainCount) +
		w.SourceReliability*engineReliability(r.Engine) +
		w.Engagement*engagementFactor(r) +
		w.Credibility*credibilityFactor(r) +
		w.Authority*authorityFactor(r) +
		w.FactualAccuracy*factualFactor(r)
}

func contextBoosts(cfg Config, r searxng.Result, rctx agents.ResearchContext, overlap float64) float64 {
	text := strings.ToLower(r.Title + " " + r.Snippet)
	var boost float64

	switch rctx.UserLevel {
	case "beginner":
		if containsAny(text, "beginner", "introduction", "basics", "getting started") {
			boost += 0.05
		}
	case "advanced":
		if containsAny(text, "advanced", "in-depth", "deep dive", "internals") {
			boost += 0.05
		}
	}

	if rctx.LearningStyle == "visual" && containsAny(text, "video", "visual", "diagram", "animation") {
		boost += 0.04
	}

	// Topical overlap above the floor earns a proportional boost.
	boost += 0.1 * overlap

	for _, ct := range rctx.ContentTypes {
		if matchesContentType(r, ct) {
			boost += 0.04
			break
		}
	}

	if containsAny(text, "research", "study", "analysis", "phd", "professor") {
		boost += 0.03 // domain expertise markers
	}
	if containsAny(text, "accepted answer", "upvoted", "highly rated", "community favorite") {
		boost += 0.03 // peer validation markers
	}
	return boost
}

func (s *Scorer) penalties(cfg Config, r searxng.Result, seenTitles map[string]struct{}) float64 {
	text := strings.ToLower(r.Title + " " + r.Snippet)
	var penalty float64

	if _, dup := seenTitles[strings.ToLower(strings.TrimSpace(r.Title))]; dup {
		penalty += 0.15
	}
	if len(r.Snippet) < 60 {
		penalty += 0.05
	}
	if r.PublishedAt != nil && time.Since(*r.PublishedAt) > cfg.StaleAfter() {
		penalty += 0.1
	}
	if containsAny(text, "you won't believe", "click here", "one weird trick", "shocking") {
		penalty += 0.2 // suspicious-content patterns
	}
	if containsAny(text, "sponsored", "advertisement", "paid promotion") {
		penalty += 0.15 // bias markers
	}
	return penalty
}

// applyDiversityAdjustment rewards engines and domains under-represented in
// the current top-K so the head of the ranking is not a single-source echo.
func (s *Scorer) applyDiversityAdjustment(cfg Config, scored []ScoredResult) {
	if len(scored) == 0 || cfg.DiversityBonus <= 0 {
		return
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})

	k := cfg.DiversityTopK
	if k <= 0 || k > len(scored) {
		k = len(scored)
	}

	engineSeen := make(map[string]int)
	domainSeen := make(map[string]int)
	for i := 0; i < k; i++ {
		engineSeen[scored[i].Engine]++
		domainSeen[domain(scored[i].URL)]++
	}

	for i := 0; i < k; i++ {
		var adj float64
		if engineSeen[scored[i].Engine] == 1 {
			adj += cfg.DiversityBonus
		}
		if domainSeen[domain(scored[i].URL)] == 1 {
			adj += cfg.DiversityBonus / 2
		}
		if adj > 0 {
			scored[i].Breakdown.Adjustments = adj
			scored[i].FinalScore = clamp01(scored[i].FinalScore + adj)
		}
	}
}

// rank sorts by final score descending with a stable tie-break on the
// original relevance, then assigns dense ranks 1..N.
func rank(scored []ScoredResult) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].Relevance > scored[j].Relevance
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}
}

func assignTiers(t Tiers, scored []ScoredResult) {
	for i := range scored {
		switch {
		case scored[i].FinalScore >= t.Excellent:
			scored[i].Tier = TierExcellent
		case scored[i].FinalScore >= t.Good:
			scored[i].Tier = TierGood
		case scored[i].FinalScore >= t.Fair:
			scored[i].Tier = TierFair
		default:
			scored[i].Tier = TierPoor
		}
	}
}

// Factor helpers. Unknown signals sit at a neutral 0.5 so a missing field
// neither sinks nor inflates a result.

func qualityFactor(r searxng.Result) float64 {
	score := 0.3
	if len(r.Snippet) >= 120 {
		score += 0.3
	} else if len(r.Snippet) >= 60 {
		score += 0.15
	}
	if r.Title != "" {
		score += 0.2
	}
	if r.PublishedAt != nil {
		score += 0.2
	}
	return clamp01(score)
}

func recencyFactor(r searxng.Result) float64 {
	if r.PublishedAt == nil {
		return 0.5
	}
	age := time.Since(*r.PublishedAt)
	switch {
	case age < 30*24*time.Hour:
		return 1.0
	case age < 180*24*time.Hour:
		return 0.8
	case age < 365*24*time.Hour:
		return 0.6
	case age < 3*365*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

func uniquenessFactor(r searxng.Result, domainCount map[string]int) float64 {
	n := domainCount[domain(r.URL)]
	if n <= 1 {
		return 1.0
	}
	return 1.0 / float64(n)
}

var engineScores = map[string]float64{
	"google scholar":   0.95,
	"semantic scholar": 0.95,
	"arxiv":            0.9,
	"pubmed":           0.9,
	"wolframalpha":     0.85,
	"wikipedia":        0.8,
	"duckduckgo":       0.6,
	"google":           0.6,
	"brave":            0.6,
	"youtube":          0.55,
	"reddit":           0.5,
}

func engineReliability(engine string) float64 {
	if s, ok := engineScores[strings.ToLower(engine)]; ok {
		return s
	}
	return 0.5
}

func engagementFactor(r searxng.Result) float64 {
	if r.Metadata == nil {
		return 0.5
	}
	score := 0.5
	if _, ok := r.Metadata["views"]; ok {
		score += 0.2
	}
	if _, ok := r.Metadata["comments"]; ok {
		score += 0.2
	}
	return clamp01(score)
}

func credibilityFactor(r searxng.Result) float64 {
	d := domain(r.URL)
	switch {
	case strings.HasSuffix(d, ".edu"), strings.HasSuffix(d, ".gov"):
		return 1.0
	case strings.HasSuffix(d, ".org"):
		return 0.8
	case strings.HasPrefix(r.URL, "https://"):
		return 0.6
	default:
		return 0.4
	}
}

var authorityDomains = map[string]struct{}{
	"en.wikipedia.org":    {},
	"arxiv.org":           {},
	"nature.com":          {},
	"sciencedirect.com":   {},
	"ieee.org":            {},
	"acm.org":             {},
	"stackoverflow.com":   {},
	"github.com":          {},
	"developer.mozilla.org": {},
}

func authorityFactor(r searxng.Result) float64 {
	d := strings.TrimPrefix(domain(r.URL), "www.")
	if _, ok := authorityDomains[d]; ok {
		return 1.0
	}
	return 0.5
}

func factualFactor(r searxng.Result) float64 {
	text := strings.ToLower(r.Snippet)
	if containsAny(text, "according to", "cited", "doi:", "et al", "references") {
		return 0.8
	}
	return 0.5
}

// overlapRatio is the fraction of topic terms present in the result's
// title or snippet.
func overlapRatio(topicTerms []string, r searxng.Result) float64 {
	if len(topicTerms) == 0 {
		return 1
	}
	text := strings.ToLower(r.Title + " " + r.Snippet)
	matched := 0
	for _, t := range topicTerms {
		if strings.Contains(text, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(topicTerms))
}

func terms(topic string) []string {
	fields := strings.Fields(strings.ToLower(topic))
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func matchesContentType(r searxng.Result, contentType string) bool {
	switch contentType {
	case "video":
		return strings.EqualFold(r.Engine, "youtube") || strings.EqualFold(r.Engine, "vimeo")
	case "paper":
		return engineReliability(r.Engine) >= 0.9
	case "discussion":
		return strings.EqualFold(r.Engine, "reddit") || strings.Contains(r.URL, "stackexchange")
	default:
		return false
	}
}

func domain(rawURL string) string {
	u := rawURL
	if idx := strings.Index(u, "://"); idx >= 0 {
		u = u[idx+3:]
	}
	if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.ToLower(u)
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
