package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
)

var (
	// ErrBufferFull is returned when the hub cannot take another frame right now.
	ErrBufferFull = errors.New("send buffer full")
	ErrHubClosed  = errors.New("hub closed")
)

const sendBuffer = 64

// Connection is one websocket client attached to a session.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	mu sync.Mutex
}

// WriteMessage writes a frame with the connection lock held.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

func (c *Connection) Close() error {
	return c.Conn.Close()
}

type sessionMessage struct {
	sessionID string
	data      []byte
}

type connMessage struct {
	conn *Connection
	data []byte
}

// Hub fans sideband frames out to the connections of each session.
type Hub struct {
	connections map[string]*Connection
	sessions    map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan sessionMessage
	direct     chan connMessage
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan sessionMessage, 256),
		direct:      make(chan connMessage, 64),
		done:        make(chan struct{}),
	}
}

// Run is the hub's main loop. It closes every connection's send channel when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, conn := range h.connections {
			close(conn.Send)
			delete(h.connections, id)
		}
		h.sessions = make(map[string]map[string]bool)
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.sessions[conn.SessionID] == nil {
				h.sessions[conn.SessionID] = make(map[string]bool)
			}
			h.sessions[conn.SessionID][conn.ID] = true
			h.mu.Unlock()
			logx.Debug().Str("conn_id", conn.ID).Str("session_id", conn.SessionID).Msg("Connection registered")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if ids := h.sessions[conn.SessionID]; ids != nil {
					delete(ids, conn.ID)
					if len(ids) == 0 {
						delete(h.sessions, conn.SessionID)
					}
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			logx.Debug().Str("conn_id", conn.ID).Msg("Connection unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for id := range h.sessions[msg.sessionID] {
				conn := h.connections[id]
				h.deliver(conn, msg.data)
			}
			h.mu.RUnlock()

		case msg := <-h.direct:
			h.mu.RLock()
			if conn, ok := h.connections[msg.conn.ID]; ok {
				h.deliver(conn, msg.data)
			}
			h.mu.RUnlock()
		}
	}
}

// deliver never blocks the loop; a client that cannot keep up is dropped.
func (h *Hub) deliver(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
		logx.Warn().Str("conn_id", conn.ID).Msg("Connection buffer full, closing")
		go h.Unregister(conn)
	}
}

// NewConnection wraps ws for sessionID; it is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn, sessionID string) *Connection {
	return &Connection{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Conn:      ws,
		Send:      make(chan []byte, sendBuffer),
	}
}

func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues data for every connection of sessionID.
func (h *Hub) Broadcast(sessionID string, data []byte) {
	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, data: data}:
	case <-h.done:
	}
}

func (h *Hub) BroadcastJSON(sessionID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(sessionID, data)
	return nil
}

// SendJSON queues v for a single connection. Frames for connections that are already gone are dropped.
func (h *Hub) SendJSON(conn *Connection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.direct <- connMessage{conn: conn, data: data}:
		return nil
	case <-h.done:
		return ErrHubClosed
	default:
		return ErrBufferFull
	}
}

// HasActiveConnections reports whether anyone is listening on sessionID.
func (h *Hub) HasActiveConnections(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// ConnectionCount is the number of open sideband connections across all sessions.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
