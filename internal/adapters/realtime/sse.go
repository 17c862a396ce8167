package realtime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/okian/judgeboard/internal/protocol"
	"github.com/okian/judgeboard/pkg/logger"
)

const ssePingInterval = 15 * time.Second

// StreamHandler serves GET /events/stream. Subscribers receive the same
// envelopes as socket clients but cannot send. ?role= narrows role-targeted
// broadcasts; domain events reach every stream.
type StreamHandler struct {
	router *Router
	ping   time.Duration
	log    logger.Logger
}

// NewStreamHandler creates the SSE handler.
func NewStreamHandler(router *Router, log logger.Logger) *StreamHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &StreamHandler{router: router, ping: ssePingInterval, log: log}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var role protocol.Role
	if q := r.URL.Query().Get("role"); q != "" {
		parsed, err := protocol.ParseRole(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		role = parsed
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	s := h.router.AddStream(role)
	defer h.router.RemoveStream(s.ID)
	h.log.Info(ctx, "stream opened", logger.String("stream_id", s.ID), logger.String("role", string(role)))

	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	frames := s.Frames()
	for {
		select {
		case <-ctx.Done():
			h.log.Info(ctx, "stream closed", logger.String("stream_id", s.ID))
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case f, ok := <-frames:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.EventType, f.Data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
