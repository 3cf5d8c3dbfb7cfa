package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one viewer connection. Viewers only receive updates; every
// schedule change goes through the HTTP API. Anonymous clients have no user
// and stay on the event they connected with.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID

	mu      sync.RWMutex
	eventID uuid.UUID
	closed  bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("[ws.ReadPump] websocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debugf("[ws.ReadPump] failed to unmarshal message: %v", err)
			c.sendError("INVALID_MESSAGE", "Message is not valid JSON")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		if c.Anonymous() {
			c.sendError("EVENT_PINNED", "Anonymous viewers stay on the event they joined")
			return
		}
		var payload SubscribePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.EventID == "" {
			c.sendError("INVALID_PAYLOAD", "Invalid subscribe payload")
			return
		}
		c.hub.subscribe(c, payload.EventID)

	case MessageTypeUnsubscribe:
		if c.Anonymous() {
			c.sendError("EVENT_PINNED", "Anonymous viewers stay on the event they joined")
			return
		}
		c.hub.unsubscribe(c)

	default:
		c.sendError("UNKNOWN_MESSAGE", "Unknown message type "+string(msg.Type))
	}
}

func (c *Client) sendError(code, message string) {
	msg, _ := NewMessage(MessageTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
	c.Send(msg)
}

// Send queues a message. Slow clients lose messages instead of stalling
// the hub.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("[ws.Send] failed to marshal message: %v", err)
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.WithField("user", c.userID).Warn("[ws.Send] send buffer full, dropping message")
	}
}

// Close marks the client as closed and closes its send channel
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// Anonymous reports whether the client connected without an access token.
func (c *Client) Anonymous() bool {
	return c.userID == uuid.Nil
}

// EventID returns the subscribed event, or uuid.Nil.
func (c *Client) EventID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventID
}

func (c *Client) setEventID(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventID = id
}
