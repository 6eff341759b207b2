// Package websocket carries named stream events over a WebSocket connection.
// Each event is one text message holding {"event": ..., "data": ...}.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// ErrOriginNotAllowed is returned when the Origin header is not on the
// allow-list.
var ErrOriginNotAllowed = errors.New("websocket: origin not allowed")

// Frame is the envelope of every message written to the client.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Upgrader upgrades HTTP requests whose Origin is absent or allowed.
type Upgrader struct {
	origins map[string]bool
	any     bool
	up      gorillawebsocket.Upgrader
}

// NewUpgrader accepts the given origins; "*" accepts any.
func NewUpgrader(origins []string) *Upgrader {
	u := &Upgrader{origins: make(map[string]bool)}
	for _, o := range origins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o == "*" {
			u.any = true
		}
		u.origins[strings.ToLower(o)] = true
	}
	u.up = gorillawebsocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     u.checkOrigin,
	}
	return u
}

func (u *Upgrader) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || u.any {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	return u.origins[strings.ToLower(parsed.Scheme+"://"+parsed.Host)]
}

// Upgrade completes the handshake. On failure the upgrader has already
// written an HTTP error response.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Writer, error) {
	if !u.checkOrigin(r) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return nil, ErrOriginNotAllowed
	}
	ws, err := u.up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)
	return NewWriter(&gorillaConnAdapter{ws}), nil
}

// Writer sends frames on a connection. It is safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	conn Conn
}

func NewWriter(c Conn) *Writer {
	return &Writer{conn: c}
}

// ReadJSON reads one text message into v.
func (w *Writer) ReadJSON(v interface{}) error {
	_, msg, err := w.conn.ReadMessage()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(msg, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// Send writes one event frame.
func (w *Writer) Send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(gorillawebsocket.TextMessage, frame)
}

// WatchClose reads and discards inbound messages until the peer goes away,
// then calls cancel.
func (w *Writer) WatchClose(cancel context.CancelFunc) {
	go func() {
		defer cancel()
		for {
			if _, _, err := w.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close sends a normal closure and closes the connection.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseNormalClosure, "")
	_ = w.conn.WriteMessage(gorillawebsocket.CloseMessage, msg)
	return w.conn.Close()
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn
// interface and bounds every write.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
