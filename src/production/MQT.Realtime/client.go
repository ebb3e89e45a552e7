package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// Client is one authenticated viewer connection. The identity resolved at
// handshake time is carried for the connection's entire lifetime.
type Client struct {
	ID     string
	UserID string
	Role   string

	conn      *websocket.Conn
	send      chan mqtmodels.Event
	closeOnce sync.Once
}

func newClient(id, userID, role string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan mqtmodels.Event, sendBufferSize),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// writePump serializes all writes to the transport: queued events plus
// keepalive pings. Exits when the send channel is closed.
func (c *Client) writePump() {
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
