package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/abishchhetri-svg/Tasks/internal/logging"
)

// Conn is a connected websocket client.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Hub broadcasts events to every connected websocket client.
type Hub struct {
	mu      sync.Mutex
	clients map[string]Conn
	nextID  atomic.Int64
	log     *logrus.Entry
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]Conn), log: logging.For("ws")}
}

// Serve registers conn and blocks until the client goes away.
func (h *Hub) Serve(conn Conn) {
	id := fmt.Sprintf("ws-%d", h.nextID.Add(1))
	h.mu.Lock()
	h.clients[id] = conn
	h.mu.Unlock()
	h.log.WithField("client", id).Debug("client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		_ = conn.Close()
		h.log.WithField("client", id).Debug("client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify writes e as JSON to all clients, dropping the ones that fail.
func (h *Hub) Notify(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.WithError(err).WithField("client", id).Debug("dropping client")
			_ = c.Close()
			delete(h.clients, id)
		}
	}
	return nil
}
