// Package network backs the ws_dial/ws_send/ws_recv builtins
// (SPEC_FULL.md §4.9) over github.com/gorilla/websocket, grounded on
// sentra-language-sentra/internal/network/websocket.go's dial/send/
// receive/close shape but trimmed to one synchronous connection per
// handle: the teacher's version spawns a reader goroutine per
// connection and runs a full WebSocket server, which would reintroduce
// the concurrency spec.md's Non-goals explicitly exclude from the
// language core. Every call here blocks the calling FnCall instead.
package network

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type Manager struct {
	mu      sync.RWMutex
	conns   map[int64]*websocket.Conn
	counter int64
}

func NewManager() *Manager {
	return &Manager{conns: map[int64]*websocket.Conn{}}
}

// Dial opens a WebSocket connection and returns a new handle.
func (m *Manager) Dial(url string) (int64, error) {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return 0, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	h := atomic.AddInt64(&m.counter, 1)
	m.mu.Lock()
	m.conns[h] = conn
	m.mu.Unlock()
	return h, nil
}

func (m *Manager) get(handle int64) (*websocket.Conn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[handle]
	if !ok {
		return nil, fmt.Errorf("websocket: unknown handle %d", handle)
	}
	return conn, nil
}

// Send writes one text frame.
func (m *Manager) Send(handle int64, text string) error {
	conn, err := m.get(handle)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Recv blocks for one text or binary frame and returns its payload.
func (m *Manager) Recv(handle int64) (string, error) {
	conn, err := m.get(handle)
	if err != nil {
		return "", err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close sends a close frame and releases the handle.
func (m *Manager) Close(handle int64) error {
	m.mu.Lock()
	conn, ok := m.conns[handle]
	if ok {
		delete(m.conns, handle)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("websocket: unknown handle %d", handle)
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}
