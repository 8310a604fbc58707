package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gatherinfo/logs"
	"gatherinfo/pubsub"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// streamLogs replays the history of a run as server-sent events, then
// forwards live events until the run finishes or the client goes away.
// Idle streams get a comment line every keepalive interval.
func (s *Server) streamLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, actionResponse{Error: "streaming unsupported"})
		return
	}
	id := chi.URLParam(r, "id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	history, live := s.relay.Watch(ctx, id)
	for _, ev := range history {
		if err := writeEvent(w, pubsub.LogEvent, ev); err != nil {
			return
		}
	}
	if s.relay.Finished(id) {
		_ = writeEvent(w, pubsub.FinishedEvent, logs.Event{Time: time.Now().UTC(), Level: logs.LevelInfo, Message: "finished"})
		flusher.Flush()
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-live:
			if !ok {
				return
			}
			if err := writeEvent(w, ev.Type, ev.Payload); err != nil {
				s.logger.Debug("log stream write failed", zap.String("run_id", id), zap.Error(err))
				return
			}
			flusher.Flush()
			if ev.Type == pubsub.FinishedEvent {
				return
			}
		}
	}
}

// writeEvent writes one SSE frame. Log entries use the default event type so
// plain EventSource onmessage handlers see them.
func writeEvent(w http.ResponseWriter, typ pubsub.EventType, ev logs.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if typ != pubsub.LogEvent {
		if _, err := fmt.Fprintf(w, "event: %s\n", typ); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
