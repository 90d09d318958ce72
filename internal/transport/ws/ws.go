// Package ws adapts a relayed websocket connection into the endpoint
// channel.
//
// Two devices join the same room on a relay. The relay assigns each side an
// endpoint id, announces the pairing with control frames, and forwards
// binary frames between the peers verbatim. From the battle core's point of
// view the result is exactly the abstract channel: connected, disconnected,
// bytes received, send.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nearplay/duelsync/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// control is the relay's announcement frame, carried as a text message.
// Data payloads travel as binary messages and are never inspected.
type control struct {
	Event      string `json:"event"`
	EndpointID string `json:"endpointId"`
	Reason     string `json:"reason"`
}

const (
	controlConnected    = "connected"
	controlDisconnected = "disconnected"
)

// Conn is one device's side of a relayed pairing. It implements
// transport.Channel.
type Conn struct {
	conn    *websocket.Conn
	handler transport.Handler
	log     *logrus.Logger

	mu         sync.Mutex
	endpointID string
	closed     bool

	send chan []byte
	done chan struct{}
	once sync.Once
}

// Dial joins a relay room and starts the read and write pumps. The handler
// receives the relay's pairing announcements and forwarded payloads.
func Dial(ctx context.Context, url string, handler transport.Handler, log *logrus.Logger) (*Conn, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if log == nil {
		log = logrus.New()
	}

	socket, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Conn{
		conn:    socket,
		handler: handler,
		log:     log,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Send forwards a payload to the named endpoint through the relay. Frames
// addressed to a stale endpoint id are refused: after a silent re-pair the
// caller must address the new identity.
func (c *Conn) Send(endpointID string, payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	current := c.endpointID
	c.mu.Unlock()

	if endpointID != current {
		return transport.ErrSendFailed
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return transport.ErrClosed
	default:
		return transport.ErrSendFailed
	}
}

// Close tears the connection down and stops both pumps.
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Debug("close websocket")
		}
	})
	return nil
}

func (c *Conn) readPump() {
	defer func() {
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.WithError(err).Warn("set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Error("websocket read")
			}
			c.mu.Lock()
			endpointID := c.endpointID
			c.mu.Unlock()
			if endpointID != "" {
				c.handler.OnDisconnected(endpointID, "transport closed")
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.handleControl(payload)
		case websocket.BinaryMessage:
			c.mu.Lock()
			endpointID := c.endpointID
			c.mu.Unlock()
			c.handler.OnBytesReceived(endpointID, payload)
		}
	}
}

func (c *Conn) handleControl(payload []byte) {
	var frame control
	if err := unmarshalControl(payload, &frame); err != nil {
		c.log.WithError(err).Warn("malformed relay control frame")
		return
	}
	switch frame.Event {
	case controlConnected:
		c.mu.Lock()
		c.endpointID = frame.EndpointID
		c.mu.Unlock()
		c.handler.OnConnected(frame.EndpointID)
	case controlDisconnected:
		c.mu.Lock()
		endpointID := c.endpointID
		c.mu.Unlock()
		c.handler.OnDisconnected(endpointID, frame.Reason)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("set write deadline")
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				c.log.WithError(err).Debug("websocket write")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("set ping write deadline")
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Debug("websocket ping")
				return
			}
		case <-c.done:
			return
		}
	}
}
