// Package coordinator runs one coordination round: it fans the agents out
// for a single topic, collects whatever they produce within the timeout,
// and turns the survivors into aggregated, ranked content.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/aggregation"
	ometrics "github.com/openscout/orchestrator/internal/metrics"
	"github.com/openscout/orchestrator/internal/scoring"
	"github.com/openscout/orchestrator/internal/streaming"
	"github.com/openscout/orchestrator/internal/subtopics"
)

// Round phases reported through Status.
const (
	PhaseInitializing = "initializing"
	PhaseResearching  = "researching"
	PhaseAggregating  = "aggregating"
	PhaseCompleted    = "completed"
	PhaseError        = "error"
)

// Validation thresholds for declaring a round successful.
const (
	minGeneralQueries = 3
	minTotalResults   = 5
)

// CriticalExecutionError marks a round that cannot stand on its own:
// general-query coverage or total result volume fell under the floor, or
// every agent failed. It is distinct from per-agent warnings.
type CriticalExecutionError struct {
	Reason string
}

func (e *CriticalExecutionError) Error() string {
	return "critical execution failure: " + e.Reason
}

// AgentTimeoutError records an agent that exceeded the per-agent deadline.
type AgentTimeoutError struct {
	AgentName string
	Timeout   time.Duration
}

func (e *AgentTimeoutError) Error() string {
	return fmt.Sprintf("agent %s timed out after %s", e.AgentName, e.Timeout)
}

// Status is the mutable per-round progress record. The coordinator is its
// single writer; snapshots go out through the broadcaster.
type Status struct {
	TopicID         string   `json:"topic_id"`
	CurrentDepth    int      `json:"current_depth"`
	TotalAgents     int      `json:"total_agents"`
	CompletedAgents int      `json:"completed_agents"`
	ActiveAgents    []string `json:"active_agents"`
	Phase           string   `json:"status"`
	Progress        float64  `json:"progress"`
	Errors          []string `json:"errors,omitempty"`
}

// Result is the outcome of one coordination round. Partial success is a
// first-class outcome: a Result with Status partial still carries whatever
// content the surviving agents produced.
type Result struct {
	Topic        string
	TopicID      string
	Depth        int
	AgentResults map[string]*agents.Result
	Content      *aggregation.Content
	Ranked       []scoring.ScoredResult
	Subtopics    []string
	Status       agents.Status
	Errors       []string
	Duration     time.Duration
	Timestamp    time.Time
}

// Config tunes a coordinator.
type Config struct {
	AgentTimeout time.Duration // per-agent deadline within a round
	MaxDepth     int           // forwarded to subtopic identification
}

// DefaultConfig returns the standard coordination knobs.
func DefaultConfig() Config {
	return Config{
		AgentTimeout: 30 * time.Second,
		MaxDepth:     3,
	}
}

// Coordinator owns one round at a time per call. Its collaborators are
// injected once at startup and shared across rounds.
type Coordinator struct {
	agents      []agents.Agent
	aggregator  *aggregation.Aggregator
	scorer      *scoring.Scorer
	identifier  *subtopics.Identifier
	broadcaster *streaming.Broadcaster
	cfg         Config
	logger      *zap.Logger
}

// New creates a coordinator over the given agent set.
func New(
	agentSet []agents.Agent,
	aggregator *aggregation.Aggregator,
	scorer *scoring.Scorer,
	identifier *subtopics.Identifier,
	broadcaster *streaming.Broadcaster,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = DefaultConfig().AgentTimeout
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		agents:      agentSet,
		aggregator:  aggregator,
		scorer:      scorer,
		identifier:  identifier,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
	}
}

// CoordinateAgents runs every agent concurrently for topic, each under its
// own timeout, and always returns a Result once all agents have resolved.
// The error is non-nil only for a critical failure; the Result is still
// populated best-effort in that case.
func (c *Coordinator) CoordinateAgents(ctx context.Context, topic, topicID string, depth int, rctx agents.ResearchContext) (*Result, error) {
	start := time.Now()
	ometrics.RoundsStarted.Inc()

	status := &Status{
		TopicID:      topicID,
		CurrentDepth: depth,
		TotalAgents:  len(c.agents),
		Phase:        PhaseInitializing,
	}
	for _, ag := range c.agents {
		status.ActiveAgents = append(status.ActiveAgents, ag.Name())
	}
	c.publishStatus(status, streaming.EventStatus, "coordination round starting")

	c.logger.Info("Starting coordination round",
		zap.String("topic", topic),
		zap.String("topic_id", topicID),
		zap.Int("depth", depth),
		zap.Int("agents", len(c.agents)),
	)

	status.Phase = PhaseResearching
	c.publishStatus(status, streaming.EventProgress, "agents dispatched")

	displayNames := make(map[string]string, len(c.agents))
	for i, ag := range c.agents {
		displayNames[ag.Name()] = agents.DisplayName(topicID, i)
	}

	type agentOutcome struct {
		name   string
		result *agents.Result
		err    error
	}
	outcomes := make(chan agentOutcome, len(c.agents))

	var wg sync.WaitGroup
	for _, ag := range c.agents {
		wg.Add(1)
		go func(ag agents.Agent) {
			defer wg.Done()
			outcomes <- agentOutcome{name: ag.Name(), result: c.runAgent(ctx, ag, topic, rctx)}
		}(ag)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	res := &Result{
		Topic:        topic,
		TopicID:      topicID,
		Depth:        depth,
		AgentResults: make(map[string]*agents.Result, len(c.agents)),
		Timestamp:    start,
	}

	// The collection loop is the single writer of status, so progress
	// updates go out serialized and monotonically.
	for outcome := range outcomes {
		res.AgentResults[outcome.name] = outcome.result
		if outcome.result.Status == agents.StatusError && outcome.result.Err != "" {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", outcome.name, outcome.result.Err))
		}

		status.CompletedAgents++
		status.ActiveAgents = remove(status.ActiveAgents, outcome.name)
		status.Errors = res.Errors
		status.Progress = float64(status.CompletedAgents) / float64(status.TotalAgents) * 70
		c.publishStatus(status, streaming.EventProgress,
			fmt.Sprintf("%s (%s agent) finished: %s", displayNames[outcome.name], outcome.name, outcome.result.Status))
	}

	status.Phase = PhaseAggregating
	status.Progress = 80
	c.publishStatus(status, streaming.EventProgress, "aggregating results")

	ordered := make([]*agents.Result, 0, len(c.agents))
	for _, ag := range c.agents {
		if r, ok := res.AgentResults[ag.Name()]; ok {
			ordered = append(ordered, r)
		}
	}
	res.Content = c.aggregator.Aggregate(ctx, ordered)
	res.Ranked = c.scorer.Score(res.Content, topic, rctx)
	res.Subtopics = c.identifier.Identify(topic, deref(ordered), depth, c.cfg.MaxDepth)

	res.Status, res.Duration = c.finalize(res, status, start)
	return res, c.criticalError(res)
}

// runAgent executes one agent under the per-agent deadline. A timeout or
// panic-free failure becomes a terminal error Result, never a missing one.
func (c *Coordinator) runAgent(ctx context.Context, ag agents.Agent, topic string, rctx agents.ResearchContext) *agents.Result {
	agentCtx, cancel := context.WithTimeout(ctx, c.cfg.AgentTimeout)
	defer cancel()

	start := time.Now()
	result, err := ag.Research(agentCtx, topic, rctx)
	ometrics.AgentDuration.WithLabelValues(ag.Name()).Observe(time.Since(start).Seconds())

	if result == nil {
		result = &agents.Result{
			AgentName: ag.Name(),
			Topic:     topic,
			Status:    agents.StatusError,
			Timestamp: time.Now(),
		}
	}
	if errors.Is(agentCtx.Err(), context.DeadlineExceeded) {
		ometrics.AgentTimeouts.WithLabelValues(ag.Name()).Inc()
		timeoutErr := &AgentTimeoutError{AgentName: ag.Name(), Timeout: c.cfg.AgentTimeout}
		result.Status = agents.StatusError
		result.Err = timeoutErr.Error()
		c.logger.Warn("Agent timed out",
			zap.String("agent", ag.Name()),
			zap.String("topic", topic),
			zap.Duration("timeout", c.cfg.AgentTimeout),
		)
	} else if err != nil && result.Err == "" {
		result.Status = agents.StatusError
		result.Err = err.Error()
	}
	return result
}

// finalize derives the round status, publishes the terminal event, and
// records the round metrics.
func (c *Coordinator) finalize(res *Result, status *Status, start time.Time) (agents.Status, time.Duration) {
	duration := time.Since(start)

	allFailed := true
	allSucceeded := true
	for _, r := range res.AgentResults {
		if r.Status != agents.StatusError {
			allFailed = false
		}
		if r.Status != agents.StatusSuccess {
			allSucceeded = false
		}
	}

	roundStatus := agents.StatusPartial
	switch {
	case allFailed || len(res.Content.Sources) < minTotalResults:
		roundStatus = agents.StatusError
	case allSucceeded && c.generalCoverageOK(res):
		roundStatus = agents.StatusSuccess
	}

	if roundStatus == agents.StatusError {
		status.Phase = PhaseError
		status.Errors = res.Errors
		c.publishStatus(status, streaming.EventError, "coordination round failed")
	} else {
		status.Phase = PhaseCompleted
		status.Progress = 100
		c.publishStatus(status, streaming.EventComplete, "coordination round complete")
		c.broadcaster.Publish(res.TopicID, streaming.Event{
			TopicID: res.TopicID,
			Type:    streaming.EventContent,
			Message: res.Content.Summary,
			Data: map[string]interface{}{
				"sources":      len(res.Content.Sources),
				"confidence":   res.Content.Confidence,
				"completeness": res.Content.Completeness,
				"subtopics":    res.Subtopics,
			},
		})
	}

	ometrics.RoundsCompleted.WithLabelValues(string(roundStatus)).Inc()
	ometrics.RoundDuration.Observe(duration.Seconds())

	c.logger.Info("Coordination round finished",
		zap.String("topic", res.Topic),
		zap.String("status", string(roundStatus)),
		zap.Int("sources", len(res.Content.Sources)),
		zap.Float64("confidence", res.Content.Confidence),
		zap.Duration("duration", duration),
	)
	return roundStatus, duration
}

// generalCoverageOK reports whether the critical agent produced enough
// successful queries to anchor the round.
func (c *Coordinator) generalCoverageOK(res *Result) bool {
	for _, ag := range c.agents {
		if !ag.Critical() {
			continue
		}
		r, ok := res.AgentResults[ag.Name()]
		if !ok || r.Status == agents.StatusError || r.QueriesOK < minGeneralQueries {
			return false
		}
	}
	return true
}

// criticalError returns the round-level error, if any. Partial rounds are
// not errors.
func (c *Coordinator) criticalError(res *Result) error {
	if res.Status != agents.StatusError {
		return nil
	}
	if len(res.Content.Sources) < minTotalResults {
		return &CriticalExecutionError{
			Reason: fmt.Sprintf("only %d total results, need at least %d", len(res.Content.Sources), minTotalResults),
		}
	}
	return &CriticalExecutionError{Reason: "all agents failed"}
}

func (c *Coordinator) publishStatus(status *Status, evtType streaming.EventType, message string) {
	snapshot := *status
	snapshot.ActiveAgents = append([]string(nil), status.ActiveAgents...)
	snapshot.Errors = append([]string(nil), status.Errors...)
	c.broadcaster.Publish(status.TopicID, streaming.Event{
		TopicID: status.TopicID,
		Type:    evtType,
		Message: message,
		Data:    snapshot,
	})
}

func remove(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}

func deref(results []*agents.Result) []agents.Result {
	out := make([]agents.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
