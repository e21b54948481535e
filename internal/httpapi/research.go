package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/cache"
	"github.com/openscout/orchestrator/internal/repository"
	"github.com/openscout/orchestrator/internal/research"
)

// ResearchHandler exposes the trigger and status endpoints for recursive
// research runs, plus cache invalidation. Run progress is consumed via the
// streaming endpoints; the run record here is the durable summary.
type ResearchHandler struct {
	base    context.Context // lifecycle root for background runs
	sys     *research.System
	cache   *cache.ResultCache
	runs    repository.RunRepository
	results repository.ResultRepository
	logger  *zap.Logger
}

// NewResearchHandler creates the research endpoints. Background runs
// derive from base, so cancelling it (shutdown) aborts in-flight trees.
// runs and results may be nil, which disables run tracking.
func NewResearchHandler(base context.Context, sys *research.System, resultCache *cache.ResultCache, runs repository.RunRepository, results repository.ResultRepository, logger *zap.Logger) *ResearchHandler {
	if base == nil {
		base = context.Background()
	}
	return &ResearchHandler{base: base, sys: sys, cache: resultCache, runs: runs, results: results, logger: logger}
}

// RegisterRoutes registers the research routes on the provided mux.
func (h *ResearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/research", h.handleResearch)
	mux.HandleFunc("/research/cache", h.handleCache)
}

type researchRequest struct {
	Topic         string   `json:"topic"`
	UserLevel     string   `json:"user_level,omitempty"`
	LearningStyle string   `json:"learning_style,omitempty"`
	ContentTypes  []string `json:"content_types,omitempty"`
	Language      string   `json:"language,omitempty"`
}

type researchResponse struct {
	TopicID string `json:"topic_id"`
}

type runResponse struct {
	TopicID     string           `json:"topic_id"`
	Topic       string           `json:"topic"`
	Status      string           `json:"status"`
	NodeCount   int              `json:"node_count"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Results     []topicResultDTO `json:"results,omitempty"`
}

type topicResultDTO struct {
	Topic        string  `json:"topic"`
	Depth        int     `json:"depth"`
	Summary      string  `json:"summary"`
	SourceCount  int     `json:"source_count"`
	Confidence   float64 `json:"confidence"`
	Completeness float64 `json:"completeness"`
}

func (h *ResearchHandler) handleResearch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.startRun(w, r)
	case http.MethodGet:
		h.runStatus(w, r)
	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

// startRun starts a recursive run in the background and returns the topic
// ID to stream progress with.
// POST /research {"topic": "...", "user_level": "beginner", ...}
func (h *ResearchHandler) startRun(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Topic == "" {
		http.Error(w, `{"error":"topic required"}`, http.StatusBadRequest)
		return
	}

	topicID := uuid.New().String()
	rctx := agents.ResearchContext{
		UserLevel:     req.UserLevel,
		LearningStyle: req.LearningStyle,
		ContentTypes:  req.ContentTypes,
		Language:      req.Language,
	}

	run := &repository.ResearchRun{
		ID:        uuid.New().String(),
		Topic:     req.Topic,
		TopicID:   topicID,
		Status:    "running",
		MaxDepth:  h.sys.MaxDepth(),
		StartedAt: time.Now(),
	}
	if h.runs != nil {
		if err := h.runs.Create(r.Context(), run); err != nil {
			h.logger.Warn("Failed to record research run", zap.Error(err))
		}
	}

	// The run outlives the request; subscribers follow it by topic ID.
	go h.executeRun(run, rctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(researchResponse{TopicID: topicID})
}

func (h *ResearchHandler) executeRun(run *repository.ResearchRun, rctx agents.ResearchContext) {
	// The run outlives its triggering request but not the process: it
	// hangs off the lifecycle context, so shutdown aborts it.
	ctx := h.base
	tree, err := h.sys.Run(ctx, run.Topic, run.TopicID, rctx)
	if err != nil {
		h.logger.Warn("Background research run failed",
			zap.String("topic", run.Topic),
			zap.String("topic_id", run.TopicID),
			zap.Error(err),
		)
	}
	if h.runs == nil {
		return
	}

	run.Status = "completed"
	if err != nil {
		run.Status = "error"
	}
	if tree != nil {
		run.NodeCount = tree.NodesCompleted + tree.NodesFailed
	}
	now := time.Now()
	run.CompletedAt = &now
	if uerr := h.runs.Update(ctx, run); uerr != nil {
		h.logger.Warn("Failed to update research run", zap.Error(uerr))
	}

	if h.results != nil && tree != nil {
		h.persistResults(ctx, run.ID, tree.Root)
	}
}

// persistResults walks the tree recording one TopicResult per completed
// node.
func (h *ResearchHandler) persistResults(ctx context.Context, runID string, node *research.Node) {
	if node == nil {
		return
	}
	if node.Status == research.NodeCompleted && node.Result != nil && node.Result.Content != nil {
		res := &repository.TopicResult{
			ID:           uuid.New().String(),
			RunID:        runID,
			Topic:        node.Topic,
			Depth:        node.Depth,
			Summary:      node.Result.Content.Summary,
			SourceCount:  len(node.Result.Content.Sources),
			Confidence:   node.Result.Content.Confidence,
			Completeness: node.Result.Content.Completeness,
			CreatedAt:    time.Now(),
		}
		if err := h.results.Create(ctx, res); err != nil {
			h.logger.Warn("Failed to record topic result",
				zap.String("topic", node.Topic), zap.Error(err))
		}
	}
	for _, child := range node.Children {
		h.persistResults(ctx, runID, child)
	}
}

// runStatus returns the recorded run and its per-topic outcomes.
// GET /research?topic_id=<id>
func (h *ResearchHandler) runStatus(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		http.Error(w, `{"error":"run tracking disabled"}`, http.StatusNotFound)
		return
	}
	topicID := r.URL.Query().Get("topic_id")
	if topicID == "" {
		http.Error(w, `{"error":"topic_id required"}`, http.StatusBadRequest)
		return
	}
	run, err := h.runs.GetByTopicID(r.Context(), topicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"lookup failed"}`, http.StatusInternalServerError)
		return
	}

	resp := runResponse{
		TopicID:     run.TopicID,
		Topic:       run.Topic,
		Status:      run.Status,
		NodeCount:   run.NodeCount,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	if h.results != nil {
		results, rerr := h.results.ListByRun(r.Context(), run.ID)
		if rerr == nil {
			for _, tr := range results {
				resp.Results = append(resp.Results, topicResultDTO{
					Topic:        tr.Topic,
					Depth:        tr.Depth,
					Summary:      tr.Summary,
					SourceCount:  tr.SourceCount,
					Confidence:   tr.Confidence,
					Completeness: tr.Completeness,
				})
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleCache invalidates every cached round for a topic.
// DELETE /research/cache?topic=<topic>
func (h *ResearchHandler) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		http.Error(w, `{"error":"topic required"}`, http.StatusBadRequest)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), topic)
	}
	w.WriteHeader(http.StatusNoContent)
}
