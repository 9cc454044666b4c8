package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "tradepost/internal/log"
	"tradepost/internal/metrics"
	"tradepost/internal/search"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// hubPatterns are the bus patterns the hub listens on.
var hubPatterns = []string{"auction:*", "tx:*", "user:*"}

// Backend is what the hub needs from the rest of the application.
type Backend interface {
	// Authenticate resolves an API token to a user id.
	Authenticate(token string) (string, error)
	// CanWatch reports whether the user may subscribe to channel.
	CanWatch(ctx context.Context, userID, channel string) bool
	// Suggest answers a type-ahead query.
	Suggest(ctx context.Context, query string) (any, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMsg is what a client may send.
//
//	{"action":"subscribe","channels":["auction:a-1"]}
//	{"action":"unsubscribe","channels":["auction:a-1"]}
//	{"action":"search","q":"swit"}
type clientMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
	Q        string   `json:"q"`
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	search *search.Debouncer

	mu     sync.RWMutex
	subs   map[string]bool
	closed bool
}

type Hub struct {
	bus      Bus
	backend  Backend
	debounce time.Duration

	mu         sync.RWMutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan Message
	ctx        context.Context
}

func NewHub(bus Bus, backend Backend, debounce time.Duration) *Hub {
	return &Hub{
		bus:        bus,
		backend:    backend,
		debounce:   debounce,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Message, 256),
		ctx:        context.Background(),
	}
}

// Run pumps bus messages to subscribed clients until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()

	for _, p := range hubPatterns {
		ch, err := h.bus.Subscribe(ctx, p)
		if err != nil {
			return err
		}
		go h.forward(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.shutdown()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.WSClients.Set(0)
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			applog.Debug("ws.connect", map[string]any{"user_id": c.userID, "clients": n})

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.shutdown()
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.Channel) {
					c.enqueue(msg.Payload)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) forward(ctx context.Context, in <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case h.broadcast <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) context() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

// ServeHTTP upgrades GET /ws?token=... and registers the client on its
// own user channel.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.backend.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Fail("ws.upgrade.fail", err, nil)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
		subs:   map[string]bool{UserChannel(userID): true},
	}
	c.search = search.NewDebouncer(h.debounce, c.suggest)

	select {
	case h.register <- c:
	case <-h.context().Done():
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// shutdown closes send exactly once; later enqueues are dropped.
func (c *client) shutdown() {
	c.search.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) enqueue(b []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		applog.Debug("ws.drop.slow_client", map[string]any{"user_id": c.userID})
	}
}

func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

func (c *client) handle(msg clientMsg) {
	switch msg.Action {
	case "subscribe":
		ctx := c.hub.context()
		for _, ch := range msg.Channels {
			if !c.hub.backend.CanWatch(ctx, c.userID, ch) {
				c.reply("error", map[string]string{"channel": ch, "error": "forbidden"})
				continue
			}
			c.mu.Lock()
			c.subs[ch] = true
			c.mu.Unlock()
		}
	case "unsubscribe":
		c.mu.Lock()
		for _, ch := range msg.Channels {
			if ch != UserChannel(c.userID) {
				delete(c.subs, ch)
			}
		}
		c.mu.Unlock()
	case "search":
		c.search.Submit(msg.Q)
	}
}

// suggest runs when the debouncer fires.
func (c *client) suggest(q string) {
	res, err := c.hub.backend.Suggest(c.hub.context(), q)
	if err != nil {
		c.reply("error", map[string]string{"q": q, "error": "search failed"})
		return
	}
	c.reply("search.results", map[string]any{"q": q, "results": res})
}

func (c *client) reply(typ string, data any) {
	b, err := json.Marshal(Envelope{Type: typ, Data: data})
	if err != nil {
		return
	}
	c.enqueue(b)
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.context().Done():
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				applog.Debug("ws.close.unexpected", map[string]any{"err": err.Error()})
			}
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) == nil {
			c.handle(msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
