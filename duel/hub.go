package duel

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"shellduel/database"
	"shellduel/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 5
	codeMaxTries = 64
	endedRoomTTL = 5 * time.Minute
	idleRoomTTL  = 24 * time.Hour
)

// Hub is the top-level room directory: code → room, plus the set of lobby
// clients watching the room list. It owns no match state; everything inside a
// room is mutated only by that room's event loop.
type Hub struct {
	logger      *zap.Logger
	tokens      *database.TokenStore
	emitter     *ResultEmitter
	gracePeriod time.Duration

	mu    sync.Mutex
	rooms map[string]*Room
	lobby map[*Client]struct{}
	rng   *rand.Rand
}

func NewHub(tokens *database.TokenStore, emitter *ResultEmitter, gracePeriod time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		logger:      logger,
		tokens:      tokens,
		emitter:     emitter,
		gracePeriod: gracePeriod,
		rooms:       make(map[string]*Room),
		lobby:       make(map[*Client]struct{}),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RegisterLobby puts a client on the room-list feed and sends the current
// list immediately.
func (h *Hub) RegisterLobby(c *Client) {
	h.mu.Lock()
	h.lobby[c] = struct{}{}
	rooms := h.summariesLocked()
	h.mu.Unlock()
	c.Send(models.ServerMessage{Type: "roomList", Payload: models.RoomListPayload{Rooms: rooms}})
}

func (h *Hub) UnregisterLobby(c *Client) {
	h.mu.Lock()
	delete(h.lobby, c)
	h.mu.Unlock()
}

func (h *Hub) SendRoomList(c *Client) {
	h.mu.Lock()
	rooms := h.summariesLocked()
	h.mu.Unlock()
	c.Send(models.ServerMessage{Type: "roomList", Payload: models.RoomListPayload{Rooms: rooms}})
}

// Summaries lists Waiting rooms only; password hashes never leave the room.
func (h *Hub) Summaries() []models.RoomSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.summariesLocked()
}

func (h *Hub) summariesLocked() []models.RoomSummary {
	out := make([]models.RoomSummary, 0, len(h.rooms))
	for _, room := range h.rooms {
		if summary, ok := room.Summary(); ok {
			out = append(out, summary)
		}
	}
	return out
}

// NotifyListChanged nudges lobby watchers to re-query. Called by rooms after
// membership or state changes.
func (h *Hub) NotifyListChanged() {
	h.mu.Lock()
	watchers := make([]*Client, 0, len(h.lobby))
	for c := range h.lobby {
		watchers = append(watchers, c)
	}
	h.mu.Unlock()
	for _, c := range watchers {
		c.Send(models.ServerMessage{Type: "roomListUpdated"})
	}
}

// CreateRoom allocates a fresh code and seats the creator as host.
func (h *Hub) CreateRoom(c *Client, password string) {
	if room, _ := c.Room(); room != nil {
		c.SendError("createRoom", "already_in_room", "Leave your current room first.")
		return
	}
	var passwordHash []byte
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			c.SendError("createRoom", "internal", "Could not create room.")
			return
		}
		passwordHash = hash
	}

	h.mu.Lock()
	code, ok := h.allocateCodeLocked()
	if !ok {
		h.mu.Unlock()
		h.logger.Error("room code space exhausted")
		c.SendError("createRoom", "room_creation_failed", "No room codes available.")
		return
	}
	room := newRoom(code, passwordHash, h, h.tokens, h.emitter, h.gracePeriod, h.logger)
	h.rooms[code] = room
	h.mu.Unlock()

	go room.run()
	room.Join(c, password, true)
	h.logger.Info("room created", zap.String("room", code), zap.Uint("host", c.UserID))
}

func (h *Hub) allocateCodeLocked() (string, bool) {
	buf := make([]byte, codeLength)
	for try := 0; try < codeMaxTries; try++ {
		for i := range buf {
			buf[i] = codeAlphabet[h.rng.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, exists := h.rooms[code]; !exists {
			return code, true
		}
	}
	return "", false
}

// JoinRoom resolves the code (case-insensitive) and hands the request to the
// room's own queue; all membership checks run there.
func (h *Hub) JoinRoom(c *Client, code, password string) {
	if room, _ := c.Room(); room != nil {
		c.SendError("joinRoom", "already_in_room", "Leave your current room first.")
		return
	}
	room := h.roomByCode(code)
	if room == nil {
		c.Send(models.ServerMessage{Type: "joinError", Payload: models.ErrorPayload{
			Event: "joinRoom", Reason: "not_found", Message: "No such room.",
		}})
		return
	}
	room.Join(c, password, false)
}

// Reconnect routes a resume attempt to the room named by the token's room
// code; the token itself is validated inside the room loop so that two
// concurrent attempts are serialized.
func (h *Hub) Reconnect(c *Client, code, token string) {
	room := h.roomByCode(code)
	if room == nil {
		c.Send(models.ServerMessage{Type: "reconnectError", Payload: models.ErrorPayload{
			Event: "reconnectToGame", Reason: "not_found", Message: "No such room.",
		}})
		return
	}
	room.Reconnect(c, token)
}

func (h *Hub) roomByCode(code string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[strings.ToUpper(strings.TrimSpace(code))]
}

func (h *Hub) removeRoom(code string) {
	h.mu.Lock()
	delete(h.rooms, code)
	h.mu.Unlock()
	h.NotifyListChanged()
}

// DropClient is called when a connection dies for any reason.
func (h *Hub) DropClient(c *Client) {
	h.UnregisterLobby(c)
	if room, _ := c.Room(); room != nil {
		room.Disconnect(c)
	}
}

// Sweep asks every room to check its own expiry; destruction happens inside
// each room's loop. Wired to the cron scheduler.
func (h *Hub) Sweep() {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()
	now := time.Now()
	for _, room := range rooms {
		room.SweepCheck(now, endedRoomTTL, idleRoomTTL)
	}
}
