package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxMessage = 512

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Handler upgrades GET /ws and keeps the connection registered until the peer goes away.
// Clients only listen; anything they send is discarded.
type Handler struct {
	hub    *Hub
	hello  func() HelloPayload
	logger *zap.Logger
}

// NewHandler returns a Handler. hello, when non-nil, supplies the first message on connect.
func NewHandler(hub *Hub, hello func() HelloPayload, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, hello: hello, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 16),
	}

	h.hub.Register(client)
	go client.writePump()

	if h.hello != nil {
		if msg, err := NewEnvelope(TypeHello, h.hello()); err == nil {
			h.hub.sendTo(client, msg)
		}
	}

	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}
