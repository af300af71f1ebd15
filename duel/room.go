package duel

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"shellduel/database"
	"shellduel/duel/engine"
	"shellduel/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RoomState int

const (
	RoomWaiting RoomState = iota
	RoomInProgress
	RoomEnded
)

func (s RoomState) String() string {
	switch s {
	case RoomWaiting:
		return "waiting"
	case RoomInProgress:
		return "in_progress"
	case RoomEnded:
		return "ended"
	}
	return "unknown"
}

const (
	MaxSeats   = 4
	MinPlayers = 2

	eventBuffer = 64
)

// seat is the room-side player slot: identity, connection handle and
// reconnect credential. Game state for the same index lives in the engine.
type seat struct {
	index     int
	name      string
	userID    uint
	client    *Client     // nil while disconnected
	token     string      // current reconnect token; rotated per grant
	grace     *time.Timer // pending forfeit, nil unless disconnected mid-match
	forfeited bool
}

// Room owns its seats and, while a match runs, the match itself. Every
// mutation is an event on the room's single ordered queue, so actions, timer
// firings and disconnects for one room never interleave. Rooms never share
// state with each other.
type Room struct {
	code         string
	hub          *Hub
	logger       *zap.Logger
	tokens       *database.TokenStore
	emitter      *ResultEmitter
	gracePeriod  time.Duration
	passwordHash []byte
	createdAt    time.Time

	events chan func()
	done   chan struct{}
	rng    *rand.Rand

	// Owned by the event loop.
	state   RoomState
	seats   []*seat
	host    *seat
	match   *engine.Match
	matchID string
	endedAt time.Time

	// Mirror for cross-goroutine reads (lobby list, cron sweep).
	infoMu     sync.Mutex
	infoState  RoomState
	infoOcc    int
	infoEnded  time.Time
	infoActive time.Time
}

func newRoom(code string, passwordHash []byte, hub *Hub, tokens *database.TokenStore,
	emitter *ResultEmitter, gracePeriod time.Duration, logger *zap.Logger) *Room {
	now := time.Now()
	return &Room{
		code:         code,
		hub:          hub,
		logger:       logger,
		tokens:       tokens,
		emitter:      emitter,
		gracePeriod:  gracePeriod,
		passwordHash: passwordHash,
		createdAt:    now,
		events:       make(chan func(), eventBuffer),
		done:         make(chan struct{}),
		rng:          rand.New(rand.NewSource(now.UnixNano())),
		infoActive:   now,
	}
}

func (r *Room) Code() string { return r.code }

// run drains the room's event queue until the room is destroyed. A panic in
// one event is fatal to the match but never to the process or other rooms.
func (r *Room) run() {
	for {
		select {
		case <-r.done:
			return
		case fn := <-r.events:
			r.safely(fn)
		}
	}
}

func (r *Room) safely(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("room event panicked",
				zap.String("room", r.code), zap.Any("panic", rec))
			r.abortMatch("internal_error")
		}
	}()
	fn()
}

func (r *Room) post(fn func()) {
	select {
	case <-r.done:
	case r.events <- fn:
	}
}

// Public entry points: each posts onto the serialized queue.

func (r *Room) Join(c *Client, password string, asHost bool) {
	r.post(func() { r.handleJoin(c, password, asHost) })
}

func (r *Room) Leave(c *Client) {
	r.post(func() { r.handleLeave(c) })
}

func (r *Room) Start(c *Client) {
	r.post(func() { r.handleStart(c) })
}

func (r *Room) Shoot(c *Client, target int) {
	r.post(func() { r.handleShoot(c, target) })
}

func (r *Room) UseItem(c *Client, item string, target *int) {
	r.post(func() { r.handleUseItem(c, item, target) })
}

func (r *Room) Disconnect(c *Client) {
	r.post(func() { r.handleDisconnect(c) })
}

func (r *Room) Reconnect(c *Client, token string) {
	r.post(func() { r.handleReconnect(c, token) })
}

// Summary returns the lobby view; ok is false for rooms that should not be
// listed.
func (r *Room) Summary() (models.RoomSummary, bool) {
	r.infoMu.Lock()
	defer r.infoMu.Unlock()
	if r.infoState != RoomWaiting {
		return models.RoomSummary{}, false
	}
	return models.RoomSummary{
		Code:        r.code,
		Occupancy:   r.infoOcc,
		Capacity:    MaxSeats,
		HasPassword: len(r.passwordHash) > 0,
	}, true
}

// SweepCheck posts a destroy for rooms past their terminal or idle timeout.
func (r *Room) SweepCheck(now time.Time, endedTTL, idleTTL time.Duration) {
	r.infoMu.Lock()
	expired := (r.infoState == RoomEnded && now.Sub(r.infoEnded) > endedTTL) ||
		now.Sub(r.infoActive) > idleTTL
	r.infoMu.Unlock()
	if expired {
		r.post(func() { r.destroy("expired") })
	}
}

// touch refreshes the cross-goroutine mirror after any state change.
func (r *Room) touch() {
	r.infoMu.Lock()
	r.infoState = r.state
	r.infoOcc = len(r.seats)
	r.infoEnded = r.endedAt
	r.infoActive = time.Now()
	r.infoMu.Unlock()
}

func (r *Room) seatOf(c *Client) *seat {
	for _, s := range r.seats {
		if s.client == c {
			return s
		}
	}
	return nil
}

func (r *Room) seatOfUser(userID uint) *seat {
	for _, s := range r.seats {
		if s.userID == userID {
			return s
		}
	}
	return nil
}

func (r *Room) handleJoin(c *Client, password string, asHost bool) {
	if r.state == RoomEnded {
		r.joinError(c, "not_found", "Room already closed.")
		return
	}
	if !asHost {
		if existing := r.seatOfUser(c.UserID); existing != nil {
			c.Send(models.ServerMessage{Type: "alreadyInGame", Payload: models.AlreadyInGamePayload{
				RoomCode:     r.code,
				MatchStarted: r.state == RoomInProgress,
			}})
			return
		}
		if r.state == RoomInProgress {
			r.joinError(c, "already_in_progress", "Match already running; use your reconnect token.")
			return
		}
		if len(r.passwordHash) > 0 {
			if err := bcrypt.CompareHashAndPassword(r.passwordHash, []byte(password)); err != nil {
				r.joinError(c, "wrong_password", "Wrong password.")
				return
			}
		}
		if len(r.seats) >= MaxSeats {
			r.joinError(c, "room_full", "Room is full.")
			return
		}
	}

	s := &seat{index: len(r.seats), name: c.Name, userID: c.UserID, client: c}
	r.seats = append(r.seats, s)
	if asHost || r.host == nil {
		r.host = s
	}
	c.bind(r, s.index)
	r.hub.UnregisterLobby(c)

	ack := "roomJoined"
	if asHost {
		ack = "roomCreated"
	}
	c.Send(models.ServerMessage{Type: ack, Payload: r.roomStateFor(s)})
	r.broadcastRoomState(s)
	r.touch()
	r.hub.NotifyListChanged()
	r.logger.Info("seat joined", zap.String("room", r.code),
		zap.Int("seat", s.index), zap.String("name", s.name))
}

func (r *Room) joinError(c *Client, reason, message string) {
	c.Send(models.ServerMessage{Type: "joinError", Payload: models.ErrorPayload{
		Event: "joinRoom", Reason: reason, Message: message,
	}})
}

func (r *Room) handleLeave(c *Client) {
	s := r.seatOf(c)
	if s == nil {
		c.SendError("leaveRoom", "not_in_room", "Not seated in this room.")
		return
	}

	s.client = nil
	c.unbind()
	c.Send(models.ServerMessage{Type: "roomLeft"})
	r.hub.RegisterLobby(c)

	if r.state == RoomInProgress {
		// Leaving mid-match is a permanent forfeit, unlike a transient drop.
		r.forfeitSeat(s, "left")
		r.destroyIfAbandoned()
		return
	}

	r.removeSeat(s)
	if len(r.seats) == 0 {
		r.destroy("empty")
		return
	}
	if r.host == s {
		r.host = r.seats[0] // next-joined seat inherits the host role
	}
	r.broadcastRoomState(nil)
	r.touch()
	r.hub.NotifyListChanged()
}

// removeSeat splices a seat out pre-match; indices are reassigned and client
// bindings follow.
func (r *Room) removeSeat(s *seat) {
	for i, cur := range r.seats {
		if cur == s {
			r.seats = append(r.seats[:i], r.seats[i+1:]...)
			break
		}
	}
	for i, cur := range r.seats {
		cur.index = i
		if cur.client != nil {
			cur.client.bind(r, i)
		}
	}
}

func (r *Room) handleStart(c *Client) {
	s := r.seatOf(c)
	if s == nil {
		c.SendError("startMatch", "not_in_room", "Not seated in this room.")
		return
	}
	if r.state != RoomWaiting {
		c.SendError("startMatch", "already_started", "Match already started.")
		return
	}
	if s != r.host {
		c.SendError("startMatch", "not_host", "Only the host can start the match.")
		return
	}
	if len(r.seats) < MinPlayers {
		c.SendError("startMatch", "insufficient_players", "Need at least two players.")
		return
	}

	r.state = RoomInProgress
	r.matchID = uuid.New().String()
	names := make([]string, len(r.seats))
	for i, st := range r.seats {
		names[i] = st.name
	}
	r.match = engine.NewMatch(engine.DefaultConfig(), names, r.rng)
	events := r.match.Start()

	// Each seat gets its private resume credential for this match instance.
	for _, st := range r.seats {
		st.token = uuid.New().String()
		if st.client != nil {
			st.client.Send(models.ServerMessage{Type: "matchStarted", Payload: models.MatchStartedPayload{
				Seat:           st.index,
				ReconnectToken: st.token,
				Snapshot:       r.match.Snapshot(st.index),
			}})
		}
	}
	r.dispatch(events)
	r.touch()
	r.hub.NotifyListChanged()
	r.logger.Info("match started", zap.String("room", r.code),
		zap.String("match", r.matchID), zap.Int("players", len(r.seats)))
}

func (r *Room) handleShoot(c *Client, target int) {
	s, ok := r.requireMatchSeat(c, "shoot")
	if !ok {
		return
	}
	events, err := r.match.Shoot(s.index, target)
	if err != nil {
		r.rejectAction(c, "shoot", err)
		return
	}
	r.touch()
	r.dispatch(events)
}

func (r *Room) handleUseItem(c *Client, item string, target *int) {
	s, ok := r.requireMatchSeat(c, "useItem")
	if !ok {
		return
	}
	kind := engine.ItemKind(item)
	if !engine.ValidItem(kind) {
		c.SendError("useItem", "item_unknown", "Unknown item kind.")
		return
	}
	targetSeat := -1
	if target != nil {
		targetSeat = *target
	}
	events, err := r.match.UseItem(s.index, kind, targetSeat)
	if err != nil {
		r.rejectAction(c, "useItem", err)
		return
	}
	r.touch()
	r.dispatch(events)
}

func (r *Room) requireMatchSeat(c *Client, event string) (*seat, bool) {
	if r.state != RoomInProgress || r.match == nil {
		c.SendError(event, "no_match", "No match in progress.")
		return nil, false
	}
	s := r.seatOf(c)
	if s == nil {
		c.SendError(event, "not_in_room", "Not seated in this room.")
		return nil, false
	}
	return s, true
}

// rejectAction converts an engine rejection into a typed outbound event; a
// corrupted queue is the one engine error fatal to the match.
func (r *Room) rejectAction(c *Client, event string, err error) {
	if err == engine.ErrQueueCorrupt {
		r.abortMatch(engine.Reason(err))
		return
	}
	c.SendError(event, engine.Reason(err), err.Error())
}

// forfeitSeat permanently removes a seat from play: manual leave, expired
// grace period, or pre-forfeit cleanup.
func (r *Room) forfeitSeat(s *seat, reason string) {
	if s.forfeited {
		return
	}
	s.forfeited = true
	s.client = nil
	r.stopGrace(s)
	// The Redis record dies now, but the token string stays on the seat so a
	// late reconnect attempt gets the distinct expiry reason.
	if s.token != "" {
		r.tokens.Delete(context.Background(), s.token)
	}
	r.broadcast(models.ServerMessage{Type: "seatForfeited", Payload: map[string]interface{}{
		"seat":   s.index,
		"reason": reason,
	}})
	if r.state == RoomInProgress && r.match != nil {
		r.dispatch(r.match.Forfeit(s.index))
	}
	r.touch()
	r.logger.Info("seat forfeited", zap.String("room", r.code),
		zap.Int("seat", s.index), zap.String("reason", reason))
}

// destroyIfAbandoned tears the room down once no connection remains.
func (r *Room) destroyIfAbandoned() {
	for _, s := range r.seats {
		if s.client != nil {
			return
		}
	}
	if r.state == RoomInProgress {
		// Disconnected seats may still reconnect within their grace period.
		for _, s := range r.seats {
			if s.grace != nil {
				return
			}
		}
	}
	r.destroy("abandoned")
}

// finishMatch runs exactly once per match instance, on the terminal engine
// event.
func (r *Room) finishMatch(winner int) {
	if r.state != RoomInProgress {
		return
	}
	r.state = RoomEnded
	r.endedAt = time.Now()

	standings := r.match.Standings()
	var winnerID uint
	var winnerName string
	loserIDs := make([]uint, 0, len(r.seats))
	for _, s := range r.seats {
		if s.index == winner {
			winnerID = s.userID
			winnerName = s.name
		} else {
			loserIDs = append(loserIDs, s.userID)
		}
	}
	r.emitter.Emit(r.code, r.matchID, winner, winnerName, standings, winnerID, loserIDs)

	r.broadcast(models.ServerMessage{Type: "matchEnded", Payload: models.MatchResultPayload{
		RoomCode:  r.code,
		MatchID:   r.matchID,
		Winner:    winner,
		Standings: standings,
	}})

	for _, s := range r.seats {
		r.stopGrace(s)
		if s.token != "" {
			r.tokens.Delete(context.Background(), s.token)
			s.token = ""
		}
	}
	r.touch()
	r.hub.NotifyListChanged()
	r.logger.Info("match ended", zap.String("room", r.code),
		zap.String("match", r.matchID), zap.Int("winner", winner))
}

// abortMatch handles internal invariant violations: fatal to this match,
// invisible to every other room.
func (r *Room) abortMatch(reason string) {
	if r.state != RoomInProgress {
		return
	}
	r.logger.Error("match aborted", zap.String("room", r.code),
		zap.String("match", r.matchID), zap.String("reason", reason))
	r.broadcast(models.ServerMessage{Type: "matchAborted", Payload: map[string]interface{}{
		"reason": reason,
	}})
	r.state = RoomEnded
	r.endedAt = time.Now()
	for _, s := range r.seats {
		r.stopGrace(s)
		if s.token != "" {
			r.tokens.Delete(context.Background(), s.token)
			s.token = ""
		}
	}
	r.touch()
	r.hub.NotifyListChanged()
}

// destroy ends the room goroutine and unregisters the code. Lingering
// clients are pushed back to the lobby.
func (r *Room) destroy(reason string) {
	select {
	case <-r.done:
		return // already destroyed
	default:
	}
	for _, s := range r.seats {
		r.stopGrace(s)
		if s.token != "" {
			r.tokens.Delete(context.Background(), s.token)
			s.token = ""
		}
		if s.client != nil {
			c := s.client
			s.client = nil
			c.unbind()
			c.Send(models.ServerMessage{Type: "roomClosed", Payload: map[string]interface{}{
				"code":   r.code,
				"reason": reason,
			}})
			r.hub.RegisterLobby(c)
		}
	}
	close(r.done)
	r.hub.removeRoom(r.code)
	r.logger.Info("room destroyed", zap.String("room", r.code), zap.String("reason", reason))
}
