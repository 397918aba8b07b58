// Package ws exposes a broadcast channel to WebSocket clients.
//
// Every accepted connection becomes an observer on the channel; an optional
// snapshot message is written first so a fresh client starts from current
// state instead of an empty view.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pixelbot/internal/broadcast"
	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

const writeTimeout = 10 * time.Second

type Hub struct {
	channel  *broadcast.Channel
	snapshot func() model.Message // nil means no cold-start payload
	upgrader websocket.Upgrader
	log      logx.Logger
}

func NewHub(channel *broadcast.Channel, snapshot func() model.Message, log logx.Logger) *Hub {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Hub{
		channel:  channel,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Handler upgrades the request and keeps the connection attached until it
// breaks or the client goes away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug("websocket upgrade failed", logx.Err(err))
			return
		}
		cl := &client{id: uuid.NewString(), conn: conn}
		if h.snapshot != nil {
			if err := cl.Send(h.snapshot()); err != nil {
				h.log.Debug("snapshot write failed", logx.Err(err))
				_ = conn.Close()
				return
			}
		}
		h.channel.Attach(cl)
		h.log.Debug("websocket client connected", logx.String("client", cl.id))

		// Inbound frames are ignored; the read loop only notices the close.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
			h.channel.Detach(cl.id)
			_ = conn.Close()
			h.log.Debug("websocket client disconnected", logx.String("client", cl.id))
		}()
	}
}

// client serializes writes; the delivery worker and the snapshot write may
// race on a fresh connection.
type client struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) ID() string { return c.id }

func (c *client) Send(msg model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}
