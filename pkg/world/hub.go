package world

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Hub tracks rooms of connected players.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
}

type room struct {
	players map[string]Player
	clients map[*client]struct{}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	room string
	id   string // empty until join
	send chan []byte
}

// NewHub creates an empty hub. checkOrigin may be nil to accept any origin.
func NewHub(logger *log.Logger, checkOrigin func(*http.Request) bool) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		rooms:    make(map[string]*room),
	}
}

// Handler upgrades requests to websockets and serves them in the room
// returned by roomOf. An empty room name is rejected with 400.
func (h *Hub) Handler(roomOf func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := roomOf(r)
		if name == "" {
			http.Error(w, "missing room", http.StatusBadRequest)
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Debug("websocket upgrade failed", "error", err)
			return
		}
		c := &client{hub: h, conn: conn, room: name, send: make(chan []byte, sendBuffer)}
		if !h.register(c) {
			conn.Close()
			return
		}
		go c.writeLoop()
		c.readLoop()
	})
}

// Players returns a snapshot of a room.
func (h *Hub) Players(name string) map[string]Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]Player)
	if rm, ok := h.rooms[name]; ok {
		for id, p := range rm.players {
			out[id] = p
		}
	}
	return out
}

// Rooms returns the number of connected clients per room.
func (h *Hub) Rooms() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.rooms))
	for name, rm := range h.rooms {
		out[name] = len(rm.clients)
	}
	return out
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var conns []*websocket.Conn
	for _, rm := range h.rooms {
		for c := range rm.clients {
			conns = append(conns, c.conn)
		}
	}
	h.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	rm, ok := h.rooms[c.room]
	if !ok {
		rm = &room{players: make(map[string]Player), clients: make(map[*client]struct{})}
		h.rooms[c.room] = rm
	}
	rm.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := rm.clients[c]; !ok {
		return
	}
	delete(rm.clients, c)
	close(c.send)
	if c.id != "" {
		delete(rm.players, c.id)
	}
	if len(rm.clients) == 0 {
		delete(h.rooms, c.room)
		return
	}
	h.broadcastLocked(rm)
}

// handle applies one client message. Messages for other players' ids and
// updates before join are ignored.
func (h *Hub) handle(c *client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[c.room]
	if !ok {
		return
	}

	switch msg.Type {
	case TypeJoin:
		if c.id != "" {
			return
		}
		id := msg.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, taken := rm.players[id]; taken {
			id = uuid.NewString()
		}
		c.id = id
		rm.players[id] = Player{Name: msg.Name}
		h.logger.Debug("player joined", "room", c.room, "id", id, "name", msg.Name)
		if data, err := json.Marshal(Message{Type: TypeWelcome, ID: id}); err == nil {
			h.enqueueLocked(c, data)
		}
	case TypeUpdate:
		if c.id == "" || (msg.ID != "" && msg.ID != c.id) || msg.Pos == nil {
			return
		}
		p := rm.players[c.id]
		p.Vec3 = *msg.Pos
		rm.players[c.id] = p
	default:
		return
	}
	h.broadcastLocked(rm)
}

func (h *Hub) broadcastLocked(rm *room) {
	data, err := json.Marshal(State{Type: TypeState, Players: rm.players})
	if err != nil {
		h.logger.Error("encode room state", "error", err)
		return
	}
	for c := range rm.clients {
		h.enqueueLocked(c, data)
	}
}

// enqueueLocked drops clients that fall too far behind.
func (h *Hub) enqueueLocked(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("dropping slow client", "room", c.room, "id", c.id)
		c.conn.Close()
	}
}

func (c *client) readLoop() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read", "room", c.room, "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug("bad message", "room", c.room, "error", err)
			continue
		}
		c.hub.handle(c, msg)
	}
}

func (c *client) writeLoop() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			return
		}
	}
}
