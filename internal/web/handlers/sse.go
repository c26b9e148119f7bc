package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// setupSSEConnection finds the session and sets up SSE headers.
// On failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter, r *http.Request, lookup func(string) (*attendance.Session, error)) (*attendance.Session, http.Flusher, bool) {
	sess, err := lookup(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return nil, nil, false
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return sess, flusher, true
}

// streamSessionEvents sends the current state, then every session event until
// the session is submitted or cancelled, or the client disconnects.
func streamSessionEvents(w http.ResponseWriter, r *http.Request, lookup func(string) (*attendance.Session, error)) {
	sess, flusher, ok := setupSSEConnection(w, r, lookup)
	if !ok {
		return
	}

	eventCh := sess.AddListener()
	defer sess.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", sess.Info(""))

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if sess.GetStatus().IsTerminal() {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
