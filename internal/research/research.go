// Package research drives coordination rounds across a bounded-depth tree
// of topics, recursing into identified subtopics depth-first.
package research

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/coordinator"
	ometrics "github.com/openscout/orchestrator/internal/metrics"
	"github.com/openscout/orchestrator/internal/streaming"
	"github.com/openscout/orchestrator/internal/vectordb"
)

// NodeStatus is the research-node state machine. Completed and error are
// terminal.
type NodeStatus string

const (
	NodePending     NodeStatus = "pending"
	NodeResearching NodeStatus = "researching"
	NodeCompleted   NodeStatus = "completed"
	NodeError       NodeStatus = "error"
)

// Node is one topic in the research tree. A parent exclusively owns its
// children; depth is non-decreasing from the root at 0.
type Node struct {
	Topic    string
	TopicID  string
	Depth    int
	Result   *coordinator.Result
	Children []*Node
	Status   NodeStatus
	Err      string
}

// Tree is the outcome of a full recursive run.
type Tree struct {
	Root            *Node
	StartedAt       time.Time
	Duration        time.Duration
	NodesCompleted  int
	NodesFailed     int
	MaxDepthReached int
}

// Rounder runs one coordination round. Satisfied by
// *coordinator.Coordinator; tests substitute fakes.
type Rounder interface {
	CoordinateAgents(ctx context.Context, topic, topicID string, depth int, rctx agents.ResearchContext) (*coordinator.Result, error)
}

// RoundCache memoizes coordination results across runs.
type RoundCache interface {
	Get(ctx context.Context, topic string, depth int, rctx agents.ResearchContext) (*coordinator.Result, bool)
	Set(ctx context.Context, topic string, depth int, rctx agents.ResearchContext, res *coordinator.Result)
}

// DocumentStore persists completed nodes. Satisfied by *vectordb.Client.
type DocumentStore interface {
	Store(ctx context.Context, docs []vectordb.Document) error
}

// Config tunes a recursive run.
type Config struct {
	MaxDepth int // tree height bound; no node reaches this depth
}

// System executes recursive research runs. Collaborators are injected
// once at startup; cache and index may be nil.
type System struct {
	rounder         Rounder
	cache           RoundCache
	index           DocumentStore
	broadcaster     *streaming.Broadcaster
	cfg             Config
	logger          *zap.Logger
	onDepthComplete func(*Node)
}

// New creates a recursive research system.
func New(rounder Rounder, cache RoundCache, index DocumentStore, broadcaster *streaming.Broadcaster, cfg Config, logger *zap.Logger) *System {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{
		rounder:     rounder,
		cache:       cache,
		index:       index,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
	}
}

// OnDepthComplete registers a callback fired once per completed node in
// depth-first post-order. Must be set before Run.
func (s *System) OnDepthComplete(fn func(*Node)) { s.onDepthComplete = fn }

// MaxDepth returns the configured tree height bound.
func (s *System) MaxDepth() int { return s.cfg.MaxDepth }

// Run researches rootTopic and every discovered subtopic down to the
// depth bound, returning the whole tree. The returned error is non-nil
// only when the root node itself failed; child failures stay on their
// nodes.
func (s *System) Run(ctx context.Context, rootTopic, rootTopicID string, rctx agents.ResearchContext) (*Tree, error) {
	if rootTopicID == "" {
		rootTopicID = uuid.New().String()
	}
	tree := &Tree{
		Root: &Node{
			Topic:   rootTopic,
			TopicID: rootTopicID,
			Status:  NodePending,
		},
		StartedAt: time.Now(),
	}

	s.logger.Info("Starting recursive research",
		zap.String("topic", rootTopic),
		zap.String("topic_id", rootTopicID),
		zap.Int("max_depth", s.cfg.MaxDepth),
	)

	s.runNode(ctx, tree.Root, rctx, tree)
	tree.Duration = time.Since(tree.StartedAt)

	ometrics.ResearchTreeDepth.Observe(float64(tree.MaxDepthReached + 1))
	if tree.Root.Status == NodeError {
		ometrics.ResearchRuns.WithLabelValues("error").Inc()
		return tree, fmt.Errorf("research %q failed: %s", rootTopic, tree.Root.Err)
	}
	ometrics.ResearchRuns.WithLabelValues("ok").Inc()

	s.logger.Info("Recursive research finished",
		zap.String("topic", rootTopic),
		zap.Int("completed", tree.NodesCompleted),
		zap.Int("failed", tree.NodesFailed),
		zap.Int("max_depth_reached", tree.MaxDepthReached),
		zap.Duration("duration", tree.Duration),
	)
	return tree, nil
}

// runNode resolves one node fully, then its children sequentially. The
// node's terminal status is set before any child starts.
func (s *System) runNode(ctx context.Context, node *Node, rctx agents.ResearchContext, tree *Tree) {
	if node.Depth > tree.MaxDepthReached {
		tree.MaxDepthReached = node.Depth
	}
	node.Status = NodeResearching

	if err := ctx.Err(); err != nil {
		s.failNode(node, tree, err)
		return
	}

	res, fromCache := s.lookupCache(ctx, node, rctx)
	if res == nil {
		var err error
		res, err = s.rounder.CoordinateAgents(ctx, node.Topic, node.TopicID, node.Depth, rctx)
		node.Result = res
		if err != nil {
			s.failNode(node, tree, err)
			return
		}
		if s.cache != nil {
			s.cache.Set(ctx, node.Topic, node.Depth, rctx, res)
		}
	} else {
		node.Result = res
	}

	node.Status = NodeCompleted
	tree.NodesCompleted++
	ometrics.ResearchNodes.WithLabelValues("completed").Inc()

	if !fromCache {
		s.persist(ctx, node)
	}

	if len(res.Subtopics) > 0 && node.Depth < s.cfg.MaxDepth-1 {
		for _, subtopic := range res.Subtopics {
			child := &Node{
				Topic:   subtopic,
				TopicID: uuid.New().String(),
				Depth:   node.Depth + 1,
				Status:  NodePending,
			}
			node.Children = append(node.Children, child)
			s.runNode(ctx, child, rctx, tree)
		}
	}

	if s.onDepthComplete != nil {
		s.onDepthComplete(node)
	}
}

func (s *System) failNode(node *Node, tree *Tree, err error) {
	node.Status = NodeError
	node.Err = err.Error()
	tree.NodesFailed++
	ometrics.ResearchNodes.WithLabelValues("error").Inc()
	s.logger.Warn("Research node failed",
		zap.String("topic", node.Topic),
		zap.Int("depth", node.Depth),
		zap.Error(err),
	)
}

func (s *System) lookupCache(ctx context.Context, node *Node, rctx agents.ResearchContext) (*coordinator.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	res, ok := s.cache.Get(ctx, node.Topic, node.Depth, rctx)
	if !ok {
		return nil, false
	}
	s.logger.Debug("Round served from cache",
		zap.String("topic", node.Topic),
		zap.Int("depth", node.Depth),
	)
	if s.broadcaster != nil {
		s.broadcaster.Publish(node.TopicID, streaming.Event{
			TopicID: node.TopicID,
			Type:    streaming.EventComplete,
			Message: "round served from cache",
		})
	}
	return res, true
}

// persist stores a completed node's corpus into the document index: the
// synthesized summary plus the top ranked sources.
func (s *System) persist(ctx context.Context, node *Node) {
	if s.index == nil || node.Result == nil || node.Result.Content == nil {
		return
	}
	content := node.Result.Content

	docs := []vectordb.Document{{
		Content: content.Summary,
		Metadata: map[string]interface{}{
			"topic":        node.Topic,
			"topic_id":     node.TopicID,
			"depth":        node.Depth,
			"kind":         "summary",
			"confidence":   content.Confidence,
			"completeness": content.Completeness,
		},
	}}
	for i, sr := range node.Result.Ranked {
		if i == 5 {
			break
		}
		docs = append(docs, vectordb.Document{
			Content: sr.Title + "\n" + sr.Snippet,
			Metadata: map[string]interface{}{
				"topic":    node.Topic,
				"topic_id": node.TopicID,
				"depth":    node.Depth,
				"kind":     "source",
				"url":      sr.URL,
				"score":    sr.FinalScore,
				"tier":     sr.Tier,
			},
		})
	}

	if err := s.index.Store(ctx, docs); err != nil {
		s.logger.Warn("Failed to persist research node",
			zap.String("topic", node.Topic),
			zap.Error(err),
		)
	}
}
