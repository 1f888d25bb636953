package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is a middleman between the websocket connection and the hub.
type client struct {
	hub     *Hub
	session *Session
	conn    *websocket.Conn
}

// ServeWS upgrades the request to a websocket and attaches it to sheetID
// as a new session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sheetID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.logger.Warn().Err(err).Str("sheet", sheetID).Msg("websocket upgrade failed")
		return
	}
	c := &client{hub: h, session: h.Connect(sheetID), conn: conn}

	go c.writePump()
	go c.readPump()
}

// readPump hands each inbound frame to the hub in arrival order and
// disconnects the session when the connection fails.
func (c *client) readPump() {
	defer func() {
		c.hub.Disconnect(c.session)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.session.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		c.hub.Handle(c.session, message)
	}
}

// writePump writes queued frames, one websocket message each, and pings
// the peer. It stops when the session's queue is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.session.Outbound():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the session.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
