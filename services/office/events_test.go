// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package office

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFeedServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil)
	router := gin.New()
	router.GET("/ws", hub.Serve)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dialFeed(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *Hub) sessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func TestChangeFeedDeliversEvents(t *testing.T) {
	hub, url := setupFeedServer(t)
	conn := dialFeed(t, url)

	require.Eventually(t, func() bool { return hub.sessionCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast(ChangeEvent{Type: "updated", ExpenseID: "exp-1", Version: 3})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event ChangeEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "updated", event.Type)
	assert.Equal(t, "exp-1", event.ExpenseID)
	assert.Equal(t, int64(3), event.Version)
}

func TestBroadcastNeverBlocksOnStalledClient(t *testing.T) {
	hub, url := setupFeedServer(t)

	// This peer never reads. Once its backlog fills, further
	// broadcasts must disconnect it rather than wait on the socket.
	dialFeed(t, url)
	require.Eventually(t, func() bool { return hub.sessionCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	// Large payloads exhaust the socket buffers quickly, so the
	// per-session backlog fills instead of draining into the kernel.
	event := ChangeEvent{Type: "updated", ExpenseID: strings.Repeat("x", 16*1024)}

	const writers = 16
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 100; n++ {
					hub.Broadcast(event)
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a non-reading client")
	}

	assert.Eventually(t, func() bool {
		hub.Broadcast(event)
		return hub.sessionCount() == 0
	}, 10*time.Second, 10*time.Millisecond, "stalled client should be dropped")
}
