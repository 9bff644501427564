package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/nrfd/pkg/firmware"
	"github.com/dougsko/nrfd/pkg/logging"
)

const (
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// observationHub fans observations out to websocket subscribers. Observe
// never blocks; a subscriber whose buffer is full misses the observation.
type observationHub struct {
	mu      sync.RWMutex
	clients map[uint64]chan firmware.Observation
	nextID  uint64

	done     chan struct{}
	stopOnce sync.Once
}

func newObservationHub() *observationHub {
	return &observationHub{
		clients: make(map[uint64]chan firmware.Observation),
		done:    make(chan struct{}),
	}
}

// Observe implements firmware.Observer
func (h *observationHub) Observe(obs firmware.Observation) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.clients {
		select {
		case ch <- obs:
		default:
			logging.Debugf("websocket", "Client %d is slow, dropping observation", id)
		}
	}
}

func (h *observationHub) subscribe() (uint64, <-chan firmware.Observation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan firmware.Observation, clientBuffer)
	h.clients[h.nextID] = ch
	return h.nextID, ch
}

func (h *observationHub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
}

// Clients returns the number of subscribers
func (h *observationHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop ends every subscription
func (h *observationHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

func (d *Daemon) handleObservationWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Errorf("websocket", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, observations := d.hub.subscribe()
	defer d.hub.unsubscribe(id)
	logging.Debugf("websocket", "Client %d connected", id)

	// The read side only detects the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case obs, ok := <-observations:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(gin.H{"type": "observation", "observation": obs}); err != nil {
				logging.Debugf("websocket", "Client %d write failed: %v", id, err)
				return
			}
		case <-closed:
			logging.Debugf("websocket", "Client %d disconnected", id)
			return
		case <-d.hub.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
