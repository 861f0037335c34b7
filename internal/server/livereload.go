package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/mdserve/internal/logging"
)

const (
	// LiveReloadPath is the WebSocket endpoint browsers connect to.
	LiveReloadPath = "/_mdserve/ws"

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// UpdateMessage is pushed to browsers when served documents change.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Targets   []string  `json:"targets,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *LiveReload
}

// LiveReload fans reload notifications out to connected browsers.
type LiveReload struct {
	clients      map[*websocket.Conn]*liveClient
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *liveClient
	unregister   chan *websocket.Conn
	quit         chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
	logger       logging.Logger
}

// NewLiveReload creates a hub; call Run to start it.
func NewLiveReload(logger logging.Logger) *LiveReload {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &LiveReload{
		clients:    make(map[*websocket.Conn]*liveClient),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *liveClient),
		unregister: make(chan *websocket.Conn),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.WithComponent("livereload"),
	}
}

// ServeHTTP upgrades the request and registers the browser.
func (lr *LiveReload) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Default options verify that the Origin matches the Host.
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		lr.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &liveClient{
		conn: conn,
		send: make(chan []byte, 16),
		hub:  lr,
	}

	select {
	case lr.register <- client:
	case <-lr.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump()
	go client.readPump()
}

// Run processes registrations and broadcasts until ctx is done or Close is
// called, then disconnects every client.
func (lr *LiveReload) Run(ctx context.Context) {
	defer close(lr.done)
	defer lr.disconnectAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lr.quit:
			return
		case client := <-lr.register:
			lr.clientsMutex.Lock()
			lr.clients[client.conn] = client
			count := len(lr.clients)
			lr.clientsMutex.Unlock()
			lr.logger.Debug(ctx, "Client connected", "clients", count)

		case conn := <-lr.unregister:
			lr.clientsMutex.Lock()
			if client, ok := lr.clients[conn]; ok {
				delete(lr.clients, conn)
				close(client.send)
			}
			count := len(lr.clients)
			lr.clientsMutex.Unlock()
			lr.logger.Debug(ctx, "Client disconnected", "clients", count)

		case message := <-lr.broadcast:
			lr.clientsMutex.Lock()
			for conn, client := range lr.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, drop it.
					delete(lr.clients, conn)
					close(client.send)
				}
			}
			lr.clientsMutex.Unlock()
		}
	}
}

// Close stops the hub.
func (lr *LiveReload) Close() {
	lr.closeOnce.Do(func() { close(lr.quit) })
}

// Notify queues a message for every connected browser. It never blocks.
func (lr *LiveReload) Notify(msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		data = []byte(`{"type":"reload"}`)
	}

	select {
	case lr.broadcast <- data:
	default:
		lr.logger.Debug(context.Background(), "Dropping live reload message, queue full")
	}
}

// ClientCount returns the number of connected browsers.
func (lr *LiveReload) ClientCount() int {
	lr.clientsMutex.RLock()
	defer lr.clientsMutex.RUnlock()
	return len(lr.clients)
}

func (lr *LiveReload) disconnectAll() {
	lr.clientsMutex.Lock()
	defer lr.clientsMutex.Unlock()

	for conn, client := range lr.clients {
		delete(lr.clients, conn)
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		close(client.send)
	}
}

// readPump drains the connection so control frames are processed.
func (c *liveClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c.conn:
		case <-c.hub.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), pongWait)
		_, _, err := c.conn.Read(ctx)
		cancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && status != -1 {
				c.hub.logger.Debug(context.Background(), "WebSocket read error", "error", err.Error())
			}
			return
		}
	}
}

// writePump delivers queued messages and keeps the connection alive.
func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
