package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
)

// Event is pushed to every open connection of one client.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	EventNotification = "notification"
	EventCountdown    = "countdown"
	EventNavigate     = "navigate"
)

type connection struct {
	clientID string
	conn     *websocket.Conn
	send     chan []byte
}

// Hub fans events out to the websocket connections of each client.
// A client may hold several connections (one per tab).
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*connection]struct{}
	upgrader    websocket.Upgrader
	log         *logrus.Logger
}

func NewHub(allowedOrigins []string, log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		connections: make(map[string]map[*connection]struct{}),
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.connections[c.clientID]
	if !ok {
		set = make(map[*connection]struct{})
		h.connections[c.clientID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.connections[c.clientID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.connections, c.clientID)
	}
}

// Connected reports how many connections a client currently holds.
func (h *Hub) Connected(clientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[clientID])
}

// Move hands every connection of one client id over to another, so open
// tabs keep receiving events after the client id is rotated.
func (h *Hub) Move(from, to string) {
	if from == to {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.connections[from]
	if !ok {
		return
	}
	delete(h.connections, from)
	dst, ok := h.connections[to]
	if !ok {
		dst = make(map[*connection]struct{}, len(set))
		h.connections[to] = dst
	}
	for c := range set {
		c.clientID = to
		dst[c] = struct{}{}
	}
}

// Push sends an event to every connection of clientID. Slow connections skip it.
func (h *Hub) Push(clientID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections[clientID] {
		select {
		case c.send <- data:
		default:
			h.log.WithField("client_id", clientID).Warn("websocket send buffer full, event dropped")
		}
	}
}

// For returns a Notifier that pushes to one client.
func (h *Hub) For(clientID string) Notifier {
	return NotifierFunc(func(n Notification) {
		h.Push(clientID, Event{Type: EventNotification, Payload: n})
	})
}

// ServeWS upgrades the request and blocks until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, clientID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &connection{
		clientID: clientID,
		conn:     conn,
		send:     make(chan []byte, 256),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// readPump only keeps the connection alive; clients never send events.
func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
