package api

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
)

// HandleWebSocket attaches an observer or voice client to a live session.
// GET /v1/sessions/:id/ws
func (h *Handler) HandleWebSocket(c echo.Context) error {
	sess, err := h.opts.Manager.Get(c.Param("id"))
	if err != nil {
		return fail(c, err)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sess.ID()).Msg("Failed to upgrade WebSocket")
		return nil
	}
	ws.SetReadLimit(h.opts.HTTP.WSMaxMessage)

	conn := h.opts.Hub.NewConnection(ws, sess.ID())
	h.opts.Hub.Register(conn)

	go h.writePump(conn)
	go h.readPump(conn, sess)
	return nil
}

// readPump reads inbound frames until the client goes away.
func (h *Handler) readPump(conn *Connection, sess *session.Session) {
	defer func() {
		h.opts.Hub.Unregister(conn)
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(h.opts.HTTP.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.HTTP.WSReadTimeout))
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logx.Warn().Err(err).Str("conn_id", conn.ID).Msg("WebSocket read error")
			}
			return
		}
		h.handleMessage(conn, sess, message)
	}
}

// writePump drains the connection's send channel and keeps it alive with pings.
func (h *Handler) writePump(conn *Connection) {
	ticker := time.NewTicker(h.opts.HTTP.WSPingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.HTTP.WSWriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logx.Warn().Err(err).Str("conn_id", conn.ID).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.HTTP.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches an inbound frame.
func (h *Handler) handleMessage(conn *Connection, sess *session.Session, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		h.sendError(conn, ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeSkipStage:
		var msg SkipStageMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, ErrorCodeInvalidMessage, "invalid skip_stage message")
			return
		}
		target, err := sess.QueueSkip(msg.TargetStageName)
		if err != nil {
			h.sendError(conn, ErrorCodeRejected, err.Error())
			return
		}
		_ = h.opts.Hub.SendJSON(conn, SkipQueuedMessage{Type: TypeSkipQueued, Target: target})
	default:
		h.sendError(conn, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (h *Handler) sendError(conn *Connection, code, message string) {
	if err := h.opts.Hub.SendJSON(conn, ErrorMessage{Type: TypeError, Code: code, Message: message}); err != nil {
		logx.Debug().Err(err).Str("conn_id", conn.ID).Msg("Error frame dropped")
	}
}
