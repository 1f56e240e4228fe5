package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 64
)

// Hub fans domain events out to websocket clients and in-process
// subscribers. External notifiers (push, email) attach as subscribers.
type Hub struct {
	logger *zap.Logger

	broadcast  chan Event
	register   chan *client
	unregister chan *client
	stop       chan struct{}

	mu          sync.Mutex
	subscribers map[chan Event]struct{}

	upgrader websocket.Upgrader
}

// client is one websocket connection.
type client struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		logger:      logger,
		broadcast:   make(chan Event, 256),
		register:    make(chan *client),
		unregister:  make(chan *client),
		stop:        make(chan struct{}),
		subscribers: make(map[chan Event]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking belongs to the reverse proxy in this
				// deployment.
				return true
			},
		},
	}
	go h.run()
	return h
}

// Publish queues an event for delivery. Delivery is best-effort: slow
// consumers are skipped, never waited on.
func (h *Hub) Publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event broadcast buffer full, dropping event",
			zap.String("type", string(event.Type)))
	}
}

// Subscribe attaches an in-process consumer. The returned cancel func must
// be called to release the subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, sendBufferSize)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the hub loop.
func (h *Hub) Close() {
	close(h.stop)
}

func (h *Hub) run() {
	clients := make(map[*client]struct{})
	for {
		select {
		case c := <-h.register:
			clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}
		case event := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- event:
				default:
					delete(clients, c)
					close(c.send)
				}
			}
			h.mu.Lock()
			for ch := range h.subscribers {
				select {
				case ch <- event:
				default:
				}
			}
			h.mu.Unlock()
		case <-h.stop:
			for c := range clients {
				close(c.send)
			}
			return
		}
	}
}

// HandleWS upgrades GET /ws connections and streams events to them.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan Event, sendBufferSize)}
	select {
	case h.register <- cl:
	case <-h.stop:
		// Hub already shut down; nobody will ever service this client.
		conn.Close()
		return
	}

	go h.writePump(cl)
	go h.readPump(cl)
}

// readPump discards inbound frames; the stream is one-way. It exists to
// service pongs and to notice closed connections.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
