package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// ConnectedEvent is the first frame a recipient receives, carrying its id.
	ConnectedEvent = "connected"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// Connected is the payload of ConnectedEvent.
type Connected struct {
	ID string `json:"id"`
}

// Hub keeps one websocket connection per recipient id and implements Emitter.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and registers the connection under the "id"
// query parameter, or under a fresh uuid when it is absent. A new connection
// with an id already in use replaces the old one.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		id = uuid.New().String()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	c := newClient(id, conn)
	if !h.register(c) {
		c.close()
		return
	}
	log.Debug().Str("recipient_id", id).Msg("recipient connected")

	b, _ := json.Marshal(Frame{Event: ConnectedEvent, Data: Connected{ID: id}})
	_ = c.enqueue(b)

	go c.writePump()
	c.readPump()

	h.unregister(c)
	log.Debug().Str("recipient_id", id).Msg("recipient disconnected")
}

// Emit queues the event for the recipient's connection.
func (h *Hub) Emit(recipientID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[recipientID]
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		return ErrRecipientNotFound
	}

	b, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return c.enqueue(b)
}

// To binds a recipient so callers can write hub.To(id).Emit(event, payload).
func (h *Hub) To(recipientID string) Target {
	return Target{emitter: h, recipientID: recipientID}
}

// Connected reports whether recipientID currently has a connection.
func (h *Hub) Connected(recipientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[recipientID]
	return ok
}

// Close disconnects every recipient.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if old, ok := h.clients[c.id]; ok {
		old.close()
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.close()
}

// Target is an Emitter bound to one recipient.
type Target struct {
	emitter     Emitter
	recipientID string
}

func (t Target) Emit(event string, payload any) error {
	return t.emitter.Emit(t.recipientID, event, payload)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *client) enqueue(b []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSlowRecipient
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump only exists to process control frames and notice the peer leaving.
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case b := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
