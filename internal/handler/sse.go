package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

// SSE event names.
const (
	eventUI     = "ui"
	eventStatus = "status"
	eventError  = "error"
	eventDone   = "done"
)

// startSSE sets the event stream headers and returns the flusher, or false
// when the writer cannot stream.
func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return flusher, true
}

// sendSSEEvent writes one event. A payload that cannot be encoded is
// reported to the client as an error event.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		event = eventError
		jsonData, _ = json.Marshal(&model.ErrorEvent{Code: "encode_error", Message: err.Error()})
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
