// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package office

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ChangeEvent is broadcast to connected sessions on every committed
// expense write. Clients use it to learn that an entity's version has
// advanced before their next save attempt hits a conflict.
type ChangeEvent struct {
	Type      string `json:"type"` // "created", "updated", "deleted"
	ExpenseID string `json:"expense_id"`
	Version   int64  `json:"version,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

const (
	// feedSendBuffer is the per-session event backlog. A session that
	// falls this far behind is disconnected.
	feedSendBuffer = 16

	// feedWriteTimeout bounds a single frame write.
	feedWriteTimeout = 10 * time.Second
)

// feedSession is one connected websocket peer. All frame writes go
// through the session's writeLoop goroutine; the gorilla connection
// supports at most one concurrent writer.
type feedSession struct {
	conn *websocket.Conn
	send chan ChangeEvent
	done chan struct{}
}

// Hub fans ChangeEvents out to connected websocket sessions.
//
// Thread Safety: safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	sessions map[*feedSession]struct{}
	log      *slog.Logger
}

// NewHub creates an empty hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[*feedSession]struct{}),
		log:      logger,
	}
}

// Serve upgrades the request to a websocket and keeps the connection
// registered until the peer disconnects. The read loop only drains
// control frames; the feed is one-way.
func (h *Hub) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := &feedSession{
		conn: ws,
		send: make(chan ChangeEvent, feedSendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.sessions[sess] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("change feed client connected", "remote", ws.RemoteAddr().String())

	go h.writeLoop(sess)
	go h.readLoop(sess)
}

func (h *Hub) readLoop(sess *feedSession) {
	defer h.drop(sess)
	for {
		if _, _, err := sess.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sess *feedSession) {
	for {
		select {
		case <-sess.done:
			return
		case event := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := sess.conn.WriteJSON(event); err != nil {
				h.log.Debug("dropping change feed client", "error", err)
				h.drop(sess)
				return
			}
		}
	}
}

// Broadcast queues the event for every connected session and returns
// without blocking. Sessions whose backlog is full are disconnected; a
// stalled peer must not hold up the commit path.
func (h *Hub) Broadcast(event ChangeEvent) {
	h.mu.Lock()
	var stalled []*feedSession
	for sess := range h.sessions {
		select {
		case sess.send <- event:
		default:
			stalled = append(stalled, sess)
		}
	}
	h.mu.Unlock()

	for _, sess := range stalled {
		h.log.Debug("dropping stalled change feed client",
			"remote", sess.conn.RemoteAddr().String())
		h.drop(sess)
	}
}

// Close disconnects all sessions.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*feedSession, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[*feedSession]struct{})
	h.mu.Unlock()

	for _, sess := range sessions {
		close(sess.done)
		_ = sess.conn.Close()
	}
}

// drop unregisters a session exactly once and closes its connection.
func (h *Hub) drop(sess *feedSession) {
	h.mu.Lock()
	_, registered := h.sessions[sess]
	if registered {
		delete(h.sessions, sess)
		close(sess.done)
	}
	h.mu.Unlock()
	if registered {
		_ = sess.conn.Close()
	}
}
