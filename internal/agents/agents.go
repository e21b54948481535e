// Package agents implements the five specialized search strategies. Each
// agent turns a topic into optimized query variants, runs them through the
// retry handler and breaker-guarded transport, and filters the merged
// results.
package agents

import (
	"context"
	"time"

	"github.com/openscout/orchestrator/internal/searxng"
)

// Status of one agent's round.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// ResearchContext carries caller preferences that shape query optimization
// and scoring.
type ResearchContext struct {
	UserLevel     string   // beginner, intermediate, advanced
	LearningStyle string   // visual, reading, hands-on
	ContentTypes  []string // article, video, paper, discussion
	Language      string
}

// Result is one agent's contribution to a coordination round. It is owned
// by the coordinator that requested it.
type Result struct {
	AgentName    string
	Topic        string
	Results      []searxng.Result
	Summary      string
	Subtopics    []string
	Status       Status
	Err          string
	QueriesRun   int
	QueriesOK    int
	FallbackUsed bool
	Timestamp    time.Time
}

// Agent is a single search strategy.
type Agent interface {
	// Name identifies the strategy (general, academic, computational,
	// video, community).
	Name() string
	// Critical marks the agent whose failure fails the whole round.
	Critical() bool
	// Research runs the strategy for one topic. It always returns a
	// Result; on total failure the Result carries StatusError and the
	// error is also returned for the coordinator's error list.
	Research(ctx context.Context, topic string, rctx ResearchContext) (*Result, error)
}

// Searcher is the slice of the transport the agents need. Satisfied by
// *searxng.Client; tests substitute fakes.
type Searcher interface {
	Search(ctx context.Context, query string, opts searxng.Options) (*searxng.Results, error)
}
