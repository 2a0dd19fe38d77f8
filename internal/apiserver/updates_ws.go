package apiserver

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// updateHub fans scan updates out to websocket subscribers.
type updateHub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	// writeMu serializes writes; gorilla connections allow one writer.
	writeMu sync.Mutex
}

func newUpdateHub(logger *log.Logger) *updateHub {
	return &updateHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The frontend is served from a different origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// handleWS upgrades the request and keeps the connection registered
// until the peer goes away.
func (h *updateHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("Websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go h.keepAlive(conn)

	// Subscribers never send payloads. The read loop only exists to
	// notice the close frame.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(conn)
}

// broadcast sends the payload to every subscriber, dropping dead
// connections along the way.
func (h *updateHub) broadcast(v interface{}) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		err := conn.WriteJSON(v)
		h.writeMu.Unlock()
		if err != nil {
			h.drop(conn)
		}
	}
}

// keepAlive pings the connection until it is dropped.
func (h *updateHub) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		_, alive := h.conns[conn]
		h.mu.Unlock()
		if !alive {
			return
		}

		h.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		h.writeMu.Unlock()
		if err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *updateHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// subscriberCount reports connected subscribers (used by tests).
func (h *updateHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
