package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	streamHeartbeat = 25 * time.Second
	streamSeenLimit = 4096
)

// seenSequences remembers the most recent sequences written to one stream.
// Sequences are allocated before commit, so entries may arrive out of order
// and only exact repeats are skipped.
type seenSequences struct {
	set   map[int64]struct{}
	order []int64
	limit int
}

func newSeenSequences(limit int) *seenSequences {
	return &seenSequences{set: make(map[int64]struct{}), limit: limit}
}

// add records seq and reports whether it was new.
func (s *seenSequences) add(seq int64) bool {
	if _, ok := s.set[seq]; ok {
		return false
	}
	s.set[seq] = struct{}{}
	s.order = append(s.order, seq)
	if len(s.order) > s.limit {
		delete(s.set, s.order[0])
		s.order = s.order[1:]
	}
	return true
}

// handleActivityStream serves a journal's committed activity as Server-Sent
// Events. Last-Event-ID resumes after the given sequence.
func (a *API) handleActivityStream(w http.ResponseWriter, r *http.Request, contextID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var after int64
	if raw := strings.TrimSpace(r.Header.Get("Last-Event-ID")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "Last-Event-ID must be an activity sequence")
			return
		}
		after = n
	}

	ctx := r.Context()
	backlog, ch, err := a.svc.SubscribeActivity(ctx, actor(r), contextID, after)
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}

	// long-lived response; the server write timeout does not apply
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	seen := newSeenSequences(streamSeenLimit)
	send := func(seq int64, v any) bool {
		if !seen.add(seq) {
			return true
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: activity\ndata: %s\n\n", seq, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for _, e := range backlog {
		if !send(e.Sequence, e) {
			return
		}
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if !send(e.Sequence, e) {
				return
			}
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
