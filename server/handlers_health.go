package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HandleHealth answers liveness probes: 200 while the chat session is connected, 503 otherwise.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !h.connected() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("chat disconnected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type limiterStatus struct {
	Name         string `json:"name"`
	IntervalMS   int64  `json:"interval_ms"`
	QueueDepth   int    `json:"queue_depth"`
	LastDispatch string `json:"last_dispatch,omitempty"`
}

// HandleStatus returns a lightweight summary of chat state and limiter queues.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limiters := make([]limiterStatus, 0, len(h.limiters))
	for _, l := range h.limiters {
		st := l.Stats()
		ls := limiterStatus{
			Name:       st.Name,
			IntervalMS: st.Interval.Milliseconds(),
			QueueDepth: st.QueueDepth,
		}
		if !st.LastDispatch.IsZero() {
			ls.LastDispatch = st.LastDispatch.UTC().Format(time.RFC3339)
		}
		limiters = append(limiters, ls)
	}
	resp := map[string]any{
		"chat_connected": h.connected(),
		"hub":            h.hub,
		"version":        h.version,
		"limiters":       limiters,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("failed to encode status", slog.Any("err", err))
	}
}
