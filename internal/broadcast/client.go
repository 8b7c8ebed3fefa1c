package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one connected websocket subscriber, generalized from the
// host repo's api.Client to carry a subscription cap alongside its
// channel set.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
	log  *zap.Logger

	subscriptions map[string]bool
	subsMu        sync.RWMutex
	maxSubs       int
}

func (c *Client) IsSubscribed(room string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[room]
}

// subscribe adds room to the client's set, refusing once maxSubs is
// reached rather than growing it unbounded.
func (c *Client) subscribe(room string) bool {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.subscriptions[room] {
		return true
	}
	if len(c.subscriptions) >= c.maxSubs {
		return false
	}
	c.subscriptions[room] = true
	return true
}

func (c *Client) unsubscribe(room string) {
	c.subsMu.Lock()
	delete(c.subscriptions, room)
	c.subsMu.Unlock()
}

// clientMessage is what a client sends the hub: subscribe/unsubscribe
// requests and history replay requests, matching the data model's
// subscribe{symbol,interval}, unsubscribe{...}, history{...}.
type clientMessage struct {
	Op       string `json:"op"`
	Mint     string `json:"mint,omitempty"`
	Interval string `json:"interval,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

func roomFor(msg clientMessage) string {
	if msg.Channel != "" {
		return msg.Channel
	}
	if msg.Interval != "" {
		return klineRoom(msg.Mint, msg.Interval)
	}
	return eventsRoom(msg.Mint)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError(400, "invalid message")
			continue
		}

		switch msg.Op {
		case "subscribe":
			room := roomFor(msg)
			if !c.subscribe(room) {
				c.sendError(429, "subscription limit reached")
				continue
			}
			c.sendJSON(serverMessage{Event: "subscription_confirmed", Data: map[string]string{"room": room}})
			if msg.Mint != "" {
				c.hub.replay(c, msg.Mint, msg.Interval)
			}
		case "unsubscribe":
			room := roomFor(msg)
			c.unsubscribe(room)
			c.sendJSON(serverMessage{Event: "subscription_confirmed", Data: map[string]string{"room": room, "action": "unsubscribe"}})
		case "history":
			c.hub.handleHistory(c, msg)
		default:
			c.sendError(400, "unknown op")
		}
	}
}

func (c *Client) sendError(code int, message string) {
	c.sendJSON(serverMessage{Event: "error", Data: errorPayload{Code: code, Message: message}})
}

func (c *Client) sendJSON(msg serverMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) writePump() {
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

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

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

// serverMessage is the envelope every server push uses, named by event
// per the data model's connection_success/subscription_confirmed/
// history_data/history_event_data/kline_data/event_data/error set.
type serverMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
