package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketEngine keeps one socket to the engine and correlates replies by request id.
type WebSocketEngine struct {
	url     string
	timeout time.Duration
	dialer  websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	seq  uint64
}

type wsRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Prompt string `json:"prompt"`
}

type wsReply struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Signal map[string]any `json:"signal"`
	Error  string         `json:"error"`
}

// NewWebSocketEngine builds an engine that dials lazily on first Run.
func NewWebSocketEngine(url string, timeout time.Duration) *WebSocketEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebSocketEngine{
		url:     url,
		timeout: timeout,
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run writes a request frame and waits for the reply carrying the same id.
func (e *WebSocketEngine) Run(ctx context.Context, prompt string) (Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		conn, _, err := e.dialer.DialContext(ctx, e.url, nil)
		if err != nil {
			return nil, fmt.Errorf("dial agent: %w", err)
		}
		conn.SetReadLimit(1 << 20)
		e.conn = conn
	}

	deadline := time.Now().Add(e.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	e.seq++
	id := "req_" + strconv.FormatUint(e.seq, 10)
	_ = e.conn.SetWriteDeadline(deadline)
	if err := e.conn.WriteJSON(wsRequest{ID: id, Action: "generateSignal", Prompt: prompt}); err != nil {
		e.reset()
		return nil, fmt.Errorf("write agent request: %w", err)
	}

	_ = e.conn.SetReadDeadline(deadline)
	for {
		var reply wsReply
		if err := e.conn.ReadJSON(&reply); err != nil {
			e.reset()
			return nil, fmt.Errorf("read agent reply: %w", err)
		}
		if reply.ID != id {
			continue
		}
		if reply.Status == "error" || reply.Error != "" {
			msg := reply.Error
			if msg == "" {
				msg = "unspecified error"
			}
			return nil, errors.New("agent error: " + msg)
		}
		if reply.Signal == nil {
			return Response{}, nil
		}
		return Response(reply.Signal), nil
	}
}

// Close drops the socket; the next Run redials.
func (e *WebSocketEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

func (e *WebSocketEngine) reset() {
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
}
