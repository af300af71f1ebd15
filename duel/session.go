package duel

import (
	"context"
	"errors"
	"time"

	"shellduel/database"
	"shellduel/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session continuity: a mid-match disconnect opens a grace window instead of
// forfeiting. The seat's reconnect token is mirrored into Redis with the
// grace period as TTL, and a timer posts the expiry back onto the room's own
// queue, so a reconnect that arrives first always wins the race.

func (r *Room) handleDisconnect(c *Client) {
	s := r.seatOf(c)
	if s == nil {
		return // already detached (leave, forfeit, destroy)
	}
	c.unbind()
	s.client = nil

	if r.state != RoomInProgress {
		// Pre-match and post-match rooms drop the seat entirely.
		if r.state == RoomWaiting {
			r.removeSeat(s)
			if len(r.seats) == 0 {
				r.destroy("empty")
				return
			}
			if r.host == s {
				r.host = r.seats[0]
			}
			r.broadcastRoomState(nil)
			r.touch()
			r.hub.NotifyListChanged()
			return
		}
		r.destroyIfAbandoned()
		return
	}

	if s.forfeited || !r.seatAlive(s.index) {
		// Nothing left to resume for this seat.
		r.destroyIfAbandoned()
		return
	}

	info := database.TokenInfo{
		RoomCode: r.code,
		Seat:     s.index,
		MatchID:  r.matchID,
		UserID:   s.userID,
	}
	if err := r.tokens.Save(context.Background(), s.token, info, r.gracePeriod); err != nil {
		r.logger.Error("failed to persist reconnect token",
			zap.String("room", r.code), zap.Int("seat", s.index), zap.Error(err))
	}

	seatIdx := s.index
	s.grace = time.AfterFunc(r.gracePeriod, func() {
		r.post(func() { r.handleGraceExpired(seatIdx) })
	})

	r.broadcast(models.ServerMessage{Type: "seatDisconnected", Payload: map[string]interface{}{
		"seat":         s.index,
		"graceSeconds": int(r.gracePeriod / time.Second),
	}})
	r.touch()
	r.logger.Info("seat disconnected, grace period started",
		zap.String("room", r.code), zap.Int("seat", s.index),
		zap.Duration("grace", r.gracePeriod))
}

// handleGraceExpired fires on the room queue after the grace window. A seat
// that reconnected in the meantime has a live client again and is left alone.
func (r *Room) handleGraceExpired(seatIdx int) {
	if seatIdx < 0 || seatIdx >= len(r.seats) || r.state != RoomInProgress {
		return
	}
	s := r.seats[seatIdx]
	if s.client != nil || s.forfeited {
		return
	}
	s.grace = nil
	r.forfeitSeat(s, "grace_expired")
	r.destroyIfAbandoned()
}

// handleReconnect validates a resume attempt against the seat's current
// token. Because the whole exchange runs on the room queue, two concurrent
// attempts with the same token resolve strictly in order: the first rotates
// the token, the second is rejected.
func (r *Room) handleReconnect(c *Client, token string) {
	reject := func(reason, message string) {
		c.Send(models.ServerMessage{Type: "reconnectError", Payload: models.ErrorPayload{
			Event: "reconnectToGame", Reason: reason, Message: message,
		}})
	}
	if r.state != RoomInProgress || r.match == nil {
		reject("not_found", "No match in progress.")
		return
	}
	if token == "" {
		reject("token_invalid", "Missing reconnect token.")
		return
	}
	var s *seat
	for _, st := range r.seats {
		if st.token == token {
			s = st
			break
		}
	}
	if s == nil {
		reject("token_invalid", "Invalid or already-used reconnect token.")
		return
	}
	if s.forfeited {
		reject("token_expired", "Grace period expired; seat was forfeited.")
		return
	}
	if s.client != nil {
		// The seat is live on another connection; the new socket loses.
		c.Send(models.ServerMessage{Type: "alreadyActive", Payload: models.AlreadyInGamePayload{
			RoomCode:     r.code,
			MatchStarted: true,
		}})
		return
	}

	// Redis holds the authoritative grace record: written on disconnect,
	// consumed on grant. A missing key means the window already closed even
	// if the local timer has not fired yet.
	info, err := r.tokens.Get(context.Background(), token)
	if err != nil {
		if errors.Is(err, database.ErrTokenNotFound) {
			reject("token_expired", "Grace period expired.")
			return
		}
		// Store outage only: the in-memory timer still vouches for the seat.
		r.logger.Error("reconnect token lookup failed",
			zap.String("room", r.code), zap.Error(err))
	} else if info.MatchID != r.matchID || info.Seat != s.index {
		reject("token_invalid", "Token does not match this seat.")
		return
	}

	r.stopGrace(s)
	r.tokens.Delete(context.Background(), token)
	s.token = uuid.New().String() // each grant is single-use
	s.client = c
	c.bind(r, s.index)
	r.hub.UnregisterLobby(c)

	c.Send(models.ServerMessage{Type: "reconnected", Payload: models.ReconnectedPayload{
		Code:           r.code,
		Seat:           s.index,
		ReconnectToken: s.token,
		Snapshot:       r.match.Snapshot(s.index),
	}})
	r.broadcastExcept(s, models.ServerMessage{Type: "seatReconnected", Payload: map[string]interface{}{
		"seat": s.index,
	}})
	r.touch()
	r.logger.Info("seat reconnected",
		zap.String("room", r.code), zap.Int("seat", s.index))
}

func (r *Room) stopGrace(s *seat) {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
}

func (r *Room) seatAlive(idx int) bool {
	if r.match == nil {
		return false
	}
	sv := r.match.Seat(idx)
	return sv != nil && sv.Alive
}
