// Package wsfeed broadcasts preload queue events to websocket clients as
// JSON messages.
package wsfeed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Lundis/go-gameassets/preload"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	// sendBuffer messages are queued per client before messages are dropped.
	sendBuffer = 256
)

// Message is the JSON form of a queue event.
type Message struct {
	Type     string  `json:"type"`
	ID       string  `json:"id,omitempty"`
	Src      string  `json:"src,omitempty"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// FromEvent converts a queue event.
func FromEvent(ev preload.Event) Message {
	m := Message{
		Type:     string(ev.Type),
		ID:       ev.Item.ID,
		Src:      ev.Item.Src,
		Progress: ev.Progress,
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	return m
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the feed is read only
	},
}

// Feed is an http.Handler upgrading requests to websocket connections that
// receive every published message.
type Feed struct {
	log     zerolog.Logger
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Message
	done chan struct{}
}

func New(logger *zerolog.Logger) *Feed {
	f := &Feed{log: zerolog.Nop(), clients: make(map[*client]struct{})}
	if logger != nil {
		f.log = logger.With().Str("component", "wsfeed").Logger()
	}
	return f
}

var queueEvents = []preload.EventType{
	preload.EventLoadStart,
	preload.EventProgress,
	preload.EventFileStart,
	preload.EventFileLoad,
	preload.EventFileError,
	preload.EventError,
	preload.EventComplete,
}

// Attach publishes the events of q until detach is called.
func (f *Feed) Attach(q *preload.Queue) (detach func()) {
	offs := make([]func(), 0, len(queueEvents))
	for _, t := range queueEvents {
		offs = append(offs, q.On(t, func(ev preload.Event) { f.Publish(FromEvent(ev)) }))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Publish queues m for every client. Clients that cannot keep up miss
// messages.
func (f *Feed) Publish(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- m:
		default:
			f.log.Debug().Str("type", m.Type).Msg("client too slow, message dropped")
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan Message, sendBuffer), done: make(chan struct{})}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = conn.Close()
		return
	}
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	f.log.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	go c.writeLoop()
	// Reading is only needed to notice the client leaving and to answer pings.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.log.Debug().Err(err).Msg("websocket read error")
			}
			break
		}
	}
	f.remove(c)
}

func (f *Feed) remove(c *client) {
	f.mu.Lock()
	_, ok := f.clients[c]
	delete(f.clients, c)
	f.mu.Unlock()
	if ok {
		close(c.done)
	}
	_ = c.conn.Close()
}

// Close disconnects every client.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	clients := make([]*client, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.Unlock()
	for _, c := range clients {
		f.remove(c)
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case m := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(m); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}
