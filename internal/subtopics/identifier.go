// Package subtopics derives follow-up research topics from a round of
// agent results.
package subtopics

import (
	"strings"

	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/agents"
)

// MaxPerRound caps how many subtopics a single round can spawn, bounding
// the fan-out of recursive research.
const MaxPerRound = 5

// Identifier collects candidate subtopics proposed by agents and reduces
// them to a bounded, deduplicated list.
type Identifier struct {
	logger *zap.Logger
}

// NewIdentifier creates a subtopic identifier.
func NewIdentifier(logger *zap.Logger) *Identifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identifier{logger: logger}
}

// Identify returns the subtopics worth researching next. It returns nil
// when depth has reached maxDepth, since those children would never be
// explored. Candidates equal to the parent topic, or contained in it, are
// discarded so recursion always moves to genuinely new ground.
func (i *Identifier) Identify(topic string, results []agents.Result, depth, maxDepth int) []string {
	if depth >= maxDepth {
		return nil
	}

	topicLower := strings.ToLower(strings.TrimSpace(topic))
	seen := make(map[string]struct{})
	var out []string

	for _, r := range results {
		for _, candidate := range r.Subtopics {
			c := strings.TrimSpace(candidate)
			if c == "" {
				continue
			}
			lower := strings.ToLower(c)
			if lower == topicLower || strings.Contains(topicLower, lower) {
				continue
			}
			if _, dup := seen[lower]; dup {
				continue
			}
			seen[lower] = struct{}{}
			out = append(out, c)
			if len(out) == MaxPerRound {
				i.logger.Debug("Subtopic cap reached",
					zap.String("topic", topic),
					zap.Int("cap", MaxPerRound),
				)
				return out
			}
		}
	}
	return out
}
