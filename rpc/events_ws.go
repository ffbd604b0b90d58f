package rpc

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gridpot/events"
)

const (
	feedBufferSize = 64
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is broadcast-only public data; origin checks stay with the
	// deployment's reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventFeed pushes every ledger event to connected websocket clients as
// JSON frames. Delivery is best-effort: a client that cannot keep up with
// its buffer is dropped rather than backpressuring the engine.
type EventFeed struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan events.Event
}

// NewEventFeed creates a feed subscribed to every event type on emitter.
func NewEventFeed(emitter *events.Emitter) *EventFeed {
	f := &EventFeed{clients: make(map[*feedClient]struct{})}
	emitter.SubscribeAll(f.broadcast)
	return f
}

// broadcast runs on the engine's emit path and must never block.
func (f *EventFeed) broadcast(ev events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- ev:
		default:
			// Slow consumer: drop it so the engine never stalls.
			delete(f.clients, c)
			close(c.send)
		}
	}
}

func (f *EventFeed) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[feed] upgrade: %v", err)
		return
	}
	c := &feedClient{conn: conn, send: make(chan events.Event, feedBufferSize)}

	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	go f.writePump(c)
	f.readPump(c)
}

// readPump discards client frames and detects disconnects.
func (f *EventFeed) readPump(c *feedClient) {
	defer f.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *EventFeed) writePump(c *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "slow consumer"),
					time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
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

// drop removes c from the client set if still present and closes its
// channel exactly once.
func (f *EventFeed) drop(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()
	c.conn.Close()
}

// Close disconnects every client.
func (f *EventFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		delete(f.clients, c)
		close(c.send)
		c.conn.Close()
	}
}
