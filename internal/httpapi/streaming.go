// Package httpapi exposes the orchestrator's HTTP surface: progress
// streaming over SSE and WebSocket, and the research trigger.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/streaming"
)

// StreamingHandler serves progress events for research topics.
type StreamingHandler struct {
	b         *streaming.Broadcaster
	buffer    int
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewStreamingHandler creates the streaming endpoints over a broadcaster.
func NewStreamingHandler(b *streaming.Broadcaster, buffer int, heartbeat time.Duration, logger *zap.Logger) *StreamingHandler {
	if buffer <= 0 {
		buffer = 64
	}
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &StreamingHandler{b: b, buffer: buffer, heartbeat: heartbeat, logger: logger}
}

// RegisterRoutes registers the streaming routes on the provided mux.
func (h *StreamingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/stream/sse", h.handleSSE)
	h.RegisterWebSocket(mux)
}

// parseFilter reads the optional comma-separated type filter.
func parseFilter(r *http.Request) map[streaming.EventType]struct{} {
	s := r.URL.Query().Get("types")
	if s == "" {
		return nil
	}
	filter := make(map[streaming.EventType]struct{})
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[streaming.EventType(t)] = struct{}{}
		}
	}
	return filter
}

func wants(filter map[streaming.EventType]struct{}, t streaming.EventType) bool {
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[t]
	return ok
}

// lastEventID reads the SSE Last-Event-ID header or its query fallback.
func lastEventID(r *http.Request) uint64 {
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			return n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// handleSSE streams events for a topic via Server-Sent Events.
// GET /stream/sse?topic_id=<id>[&types=progress,complete][&last_event_id=N]
func (h *StreamingHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	topicID := r.URL.Query().Get("topic_id")
	if topicID == "" {
		http.Error(w, `{"error":"topic_id required"}`, http.StatusBadRequest)
		return
	}
	filter := parseFilter(r)
	lastID := lastEventID(r)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := h.b.Subscribe(topicID, h.buffer)
	defer h.b.Unsubscribe(topicID, ch)

	fmt.Fprintf(w, ": connected to topic %s\n\n", topicID)
	flusher.Flush()

	// Replay backlog since lastID (best-effort)
	if lastID > 0 {
		for _, ev := range h.b.ReplaySince(topicID, lastID) {
			if !wants(filter, ev.Type) {
				continue
			}
			writeSSE(w, ev)
		}
		flusher.Flush()
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", zap.String("topic_id", topicID))
			return
		case evt := <-ch:
			if !wants(filter, evt.Type) {
				continue
			}
			writeSSE(w, evt)
			flusher.Flush()
		case <-hb.C:
			// Keeps connections alive through proxies.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev streaming.Event) {
	if ev.Seq > 0 {
		fmt.Fprintf(w, "id: %d\n", ev.Seq)
	}
	if ev.Type != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Type)
	}
	fmt.Fprintf(w, "data: %s\n\n", string(ev.Marshal()))
}
