// Package live pushes reconciler events to dashboard websocket clients.
package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mandoub-backend/internal/logger"
	"mandoub-backend/internal/metrics"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/timeutil"
)

const writeTimeout = 5 * time.Second

// Event is one message on the feed.
type Event struct {
	Type    string      `json:"type"`
	Kind    models.Kind `json:"kind"`
	Payload any         `json:"payload,omitempty"`
	At      string      `json:"at"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Hub struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan Event
	done       chan struct{}
	log        zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Event, 256),
		done:      make(chan struct{}),
		log:       logger.For("live"),
	}
}

// Notify queues an event. It never blocks; events are dropped when the buffer is full.
func (h *Hub) Notify(event string, kind models.Kind, payload any) {
	e := Event{Type: event, Kind: kind, Payload: payload, At: timeutil.ISO(timeutil.Now())}
	select {
	case h.broadcast <- e:
	default:
		h.log.Warn().Str("type", event).Msg("live feed buffer full, dropping event")
	}
}

// Run delivers queued events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case e := <-h.broadcast:
			h.send(e)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.clientsMux.Lock()
	h.clients[conn] = true
	metrics.LiveClients.Set(float64(len(h.clients)))
	h.clientsMux.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) send(e Event) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteJSON(e); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
	metrics.LiveClients.Set(float64(len(h.clients)))
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	delete(h.clients, conn)
	metrics.LiveClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	metrics.LiveClients.Set(0)
}
