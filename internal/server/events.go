package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/petems/camrec/internal/blob"
	"github.com/petems/camrec/internal/capture"
)

const (
	writeWait  = 5 * time.Second
	clientSend = 32
)

// EventMessage is the JSON shape pushed to /events clients
type EventMessage struct {
	Type     string `json:"type"`
	State    string `json:"state,omitempty"`
	Size     string `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
	Link     string `json:"link,omitempty"`
	Download string `json:"download,omitempty"`
	Time     string `json:"time"`
}

// Hub fans session events out to websocket clients. It implements
// capture.Observer; slow clients drop messages rather than stall a session.
type Hub struct {
	upgrader websocket.Upgrader
	blobs    *blob.Store
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan EventMessage
}

// NewHub creates a hub. blobs may be nil; it only adds download paths.
func NewHub(blobs *blob.Store, log zerolog.Logger) *Hub {
	return &Hub{
		blobs:   blobs,
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

var _ capture.Observer = (*Hub)(nil)

// OnEvent broadcasts a session event
func (h *Hub) OnEvent(e capture.Event) {
	msg := EventMessage{
		Type:  e.Type,
		State: string(e.State),
		Link:  e.Link,
		Time:  e.Time.Format(time.RFC3339Nano),
	}
	if e.Type == capture.EventFinalized {
		msg.Size = blob.HumanSize(e.Size)
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}
	if e.Link != "" && h.blobs != nil {
		msg.Download = h.blobs.HTTPPath(e.Link)
	}
	h.Broadcast(msg)
}

// Broadcast queues msg for every client
func (h *Hub) Broadcast(msg EventMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("type", msg.Type).Msg("Event client too slow, dropping message")
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan EventMessage, clientSend)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		// Drain reads so close frames are processed
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
