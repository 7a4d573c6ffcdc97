// Package socket maintains the single real-time connection to the
// support-desk backend, hiding reconnection from consumers.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Path is the fixed connection path below the socket origin.
const Path = "/ws/notifications"

// Server and client event names on the socket protocol.
const (
	EventNotification       = "notification"
	EventTokenExpired       = "token_expired"
	EventClientNotification = "client:notification"
)

// Frame is one message on the wire: an event name plus a JSON payload.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame builds a frame, encoding payload as JSON.
func NewFrame(event string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Frame{Event: event, Payload: raw}, nil
}

// Conn is a live bidirectional connection. ReadFrame blocks until a
// frame arrives or the connection dies.
type Conn interface {
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
}

// Dialer establishes connections. The manager never touches the
// transport directly, so tests substitute an in-memory dialer.
type Dialer interface {
	Dial(ctx context.Context, url string, token string) (Conn, error)
}

// wsDialer dials over WebSocket with a bearer credential in the
// handshake headers.
type wsDialer struct {
	handshakeTimeout time.Duration
}

// NewDialer returns the production WebSocket dialer.
func NewDialer(handshakeTimeout time.Duration) Dialer {
	return &wsDialer{handshakeTimeout: handshakeTimeout}
}

func (d *wsDialer) Dial(ctx context.Context, url string, token string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	c, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadFrame() (Frame, error) {
	var f Frame
	if err := w.c.ReadJSON(&f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (w *wsConn) WriteFrame(f Frame) error {
	return w.c.WriteJSON(f)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}
