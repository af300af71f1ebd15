package duel

import (
	"encoding/json"
	"sync"
	"time"

	"shellduel/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 10 * time.Second
	sendBuffer = 32
)

// Client is one websocket connection with a validated guest identity. A
// client is either in the lobby or bound to a seat in exactly one room.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	logger *zap.Logger

	UserID uint
	Name   string

	send chan models.ServerMessage

	mu     sync.Mutex
	room   *Room
	seat   int
	closed bool
}

func newClient(conn *websocket.Conn, hub *Hub, userID uint, name string, logger *zap.Logger) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		logger: logger,
		UserID: userID,
		Name:   name,
		send:   make(chan models.ServerMessage, sendBuffer),
		seat:   -1,
	}
}

func (c *Client) Room() (*Room, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.seat
}

func (c *Client) bind(room *Room, seat int) {
	c.mu.Lock()
	c.room = room
	c.seat = seat
	c.mu.Unlock()
}

func (c *Client) unbind() {
	c.bind(nil, -1)
}

// Send queues a message without blocking the room loop. A full buffer means a
// stalled client; the message is dropped and the connection's ping/pong
// liveness will surface the problem.
func (c *Client) Send(msg models.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping message to slow client",
			zap.Uint("userID", c.UserID), zap.String("type", msg.Type))
	}
}

func (c *Client) SendError(event, reason, message string) {
	c.Send(models.ServerMessage{
		Type:    "actionRejected",
		Payload: models.ErrorPayload{Event: event, Reason: reason, Message: message},
	})
}

// writePump flushes queued messages and keeps the ping ticker running.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Info("write failed, dropping client",
					zap.Uint("userID", c.UserID), zap.Error(err))
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

// readPump reads inbound envelopes until the connection drops, then reports
// the disconnect to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.DropClient(c)
		c.closeSend()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var msg models.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("websocket closed unexpectedly",
					zap.Uint("userID", c.UserID), zap.Error(err))
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// dispatch routes one inbound event: lobby events go to the hub, room events
// are posted onto the owning room's serialized queue.
func (c *Client) dispatch(msg models.ClientMessage) {
	switch msg.Type {
	case "createRoom":
		var p models.CreateRoomPayload
		if !c.decode(msg, &p) {
			return
		}
		c.hub.CreateRoom(c, p.Password)
	case "joinRoom":
		var p models.JoinRoomPayload
		if !c.decode(msg, &p) {
			return
		}
		c.hub.JoinRoom(c, p.Code, p.Password)
	case "listRooms":
		c.hub.SendRoomList(c)
	case "reconnectToGame":
		var p models.ReconnectPayload
		if !c.decode(msg, &p) {
			return
		}
		c.hub.Reconnect(c, p.Code, p.Token)
	case "leaveRoom":
		if room := c.requireRoom(msg.Type); room != nil {
			room.Leave(c)
		}
	case "startMatch":
		if room := c.requireRoom(msg.Type); room != nil {
			room.Start(c)
		}
	case "shoot":
		var p models.ShootPayload
		if !c.decode(msg, &p) {
			return
		}
		if room := c.requireRoom(msg.Type); room != nil {
			room.Shoot(c, p.Target)
		}
	case "useItem":
		var p models.UseItemPayload
		if !c.decode(msg, &p) {
			return
		}
		if room := c.requireRoom(msg.Type); room != nil {
			room.UseItem(c, p.Item, p.Target)
		}
	default:
		c.SendError(msg.Type, "unknown_event", "Unknown event type.")
	}
}

func (c *Client) decode(msg models.ClientMessage, dst interface{}) bool {
	if len(msg.Payload) == 0 {
		msg.Payload = []byte("{}")
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		c.SendError(msg.Type, "bad_payload", "Malformed payload.")
		return false
	}
	return true
}

func (c *Client) requireRoom(event string) *Room {
	room, _ := c.Room()
	if room == nil {
		c.SendError(event, "not_in_room", "Join a room first.")
	}
	return room
}
