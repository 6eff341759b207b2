// Package sse writes server-sent events.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Writer emits `event: <name>\ndata: <json>\n\n` frames, flushing after each.
// It is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	flush func()
}

// NewWriter sets the event-stream headers on w, writes the 200 status and
// returns a Writer that flushes every frame.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &Writer{w: w, flush: f.Flush}, nil
}

// NewStreamWriter writes frames to a plain stream such as stdout.
func NewStreamWriter(w io.Writer) *Writer {
	return &Writer{w: w, flush: func() {}}
}

// Send marshals data as JSON and writes one frame. A payload that cannot be
// encoded returns the json error before anything is written.
func (s *Writer) Send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	s.flush()
	return nil
}
