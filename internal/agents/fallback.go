package agents

import (
	"regexp"
	"strings"
)

// FallbackStrategy produces escalating replacement queries when the
// critical agent's optimized variants all fail. The rewrites are product
// heuristics, not a contract, so they stay behind this interface.
type FallbackStrategy interface {
	Rewrites(topic string) []string
}

// HeuristicFallback is the default strategy: simplify jargon, shorten to
// the leading terms, then ask for an accessible overview.
type HeuristicFallback struct{}

var jargonPattern = regexp.MustCompile(`(?i)\b(advanced|complex|technical|sophisticated)\b`)

func (HeuristicFallback) Rewrites(topic string) []string {
	rewrites := make([]string, 0, 3)

	simplified := strings.TrimSpace(jargonPattern.ReplaceAllString(topic, "basic"))
	if simplified != "" && !strings.EqualFold(simplified, topic) {
		rewrites = append(rewrites, simplified)
	}

	if terms := strings.Fields(topic); len(terms) > 3 {
		rewrites = append(rewrites, strings.Join(terms[:3], " "))
	}

	rewrites = append(rewrites, topic+" beginner guide overview")
	return rewrites
}
