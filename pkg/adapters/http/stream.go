package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/trajview/pkg/viewer"
)

// watchFilter selects the snapshot parts whose changes are streamed.
// An empty filter streams every change.
type watchFilter map[string]bool

func parseWatch(raw *string) watchFilter {
	f := watchFilter{}
	if raw == nil {
		return f
	}
	for _, field := range strings.Split(*raw, ",") {
		if field = strings.TrimSpace(field); field != "" {
			f[field] = true
		}
	}
	return f
}

func (f watchFilter) changed(prev, next viewer.Snapshot) bool {
	if len(f) == 0 {
		return !prev.Equal(next)
	}
	if f["source"] && !prev.Source.Equal(next.Source) {
		return true
	}
	if f["status"] && prev.Status != next.Status {
		return true
	}
	if f["request"] {
		switch {
		case (prev.Request == nil) != (next.Request == nil):
			return true
		case prev.Request != nil && *prev.Request != *next.Request:
			return true
		case prev.Subject != next.Subject:
			return true
		}
	}
	return false
}

// SubscribeEvents handles the GET /sessions/{session}/events request (SSE).
// The first event carries the current snapshot.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request, session string, params SubscribeEventsParams) {
	sess, ok := s.lookup(w, session)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to session updates", "session_id", session)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	filter := parseWatch(params.Watch)
	var last *viewer.Snapshot
	for snap := range sess.Watch(r.Context()) {
		if last != nil && !filter.changed(*last, snap) {
			continue
		}
		data, err := json.Marshal(snap)
		if err != nil {
			s.logger.Error("SSE: Snapshot encode failed", "session_id", session, "err", err)
			continue
		}
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
		flusher.Flush()
		last = &snap
	}
	s.logger.Info("SSE: Client disconnected", "session_id", session)
}
