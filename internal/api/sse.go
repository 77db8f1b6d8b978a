package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mscrnt/streamops-go/internal/logger"
)

// JobStream handles GET /api/jobs/stream, an SSE feed of every job-queue
// transition, flushed to the client as each event arrives.
func (h *Handler) JobStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	eventCh := h.Jobs.Subscribe()
	defer h.Jobs.Unsubscribe(eventCh)

	initial, _ := json.Marshal(map[string]any{"type": "init", "jobs": h.Jobs.List()})
	fmt.Fprintf(w, "data: %s\n\n", initial)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Warn("sse: failed to marshal job event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
