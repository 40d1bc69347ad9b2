package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 256
)

// Client wraps one websocket connection and implements Outbound. Frames
// are marshalled once into a buffered send channel; the write pump is the
// only goroutine that writes to the socket.
type Client struct {
	id      uuid.UUID
	conn    *websocket.Conn
	session *Session

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues a frame for delivery. A consumer too slow to drain its
// buffer is disconnected rather than allowed to block broadcasts.
func (c *Client) Send(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		log.Printf("ws: marshal %s frame: %v", f.Event, err)
		return
	}
	select {
	case c.send <- b:
	case <-c.done:
	default:
		go c.Close()
	}
}

// Close tears the connection down exactly once: the session leaves the
// registries, the write pump drains out, and the socket closes.
func (c *Client) Close() {
	c.once.Do(func() {
		c.session.Close()
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump reads inbound frames and hands them to the session. Handlers
// run to completion here, one at a time, which is what gives each
// connection FIFO handling of its own events.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Printf("ws: read error conn=%s: %v", c.id, err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.Send(errorFrame("malformed frame"))
			continue
		}
		c.handle(frame)
	}
}

// handle isolates a panicking handler to its own connection: the process
// and other connections keep running.
func (c *Client) handle(frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ws: panic handling %s on conn=%s: %v", frame.Event, c.id, r)
			go c.Close()
		}
	}()
	c.session.HandleFrame(context.Background(), frame)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func errorFrame(message string) Frame {
	frame, _ := NewFrame(EventError, ErrorPayload{Message: message})
	return frame
}
