package duel

import (
	"shellduel/duel/engine"
	"shellduel/models"
)

// dispatch fans a batch of engine deltas out to the seats. Most events are
// public; shell reveals and item grants can be addressed to a single seat.
// The terminal event flips the room into its ended state.
func (r *Room) dispatch(events []engine.Event) {
	for _, ev := range events {
		switch e := ev.(type) {
		case engine.RoundStarted:
			r.broadcast(models.ServerMessage{Type: "roundStarted", Payload: e})
		case engine.TurnChanged:
			r.broadcast(models.ServerMessage{Type: "turnChanged", Payload: e})
		case engine.TurnSkipped:
			r.broadcast(models.ServerMessage{Type: "turnSkipped", Payload: e})
		case engine.ShotResolved:
			r.broadcast(models.ServerMessage{Type: "shotResolved", Payload: e})
		case engine.ItemUsed:
			r.broadcast(models.ServerMessage{Type: "itemUsed", Payload: e})
		case engine.ShellRevealed:
			if e.PrivateTo >= 0 {
				r.sendToSeat(e.PrivateTo, models.ServerMessage{Type: "shellRevealed", Payload: e})
			} else {
				r.broadcast(models.ServerMessage{Type: "shellRevealed", Payload: e})
			}
		case engine.HPChanged:
			r.broadcast(models.ServerMessage{Type: "hpChanged", Payload: e})
		case engine.ItemsGranted:
			r.sendToSeat(e.Seat, models.ServerMessage{Type: "itemsGranted", Payload: e})
			r.broadcast(models.ServerMessage{Type: "inventoryChanged", Payload: map[string]interface{}{
				"seat":  e.Seat,
				"count": len(e.Items),
			}})
		case engine.SeatEliminated:
			r.broadcast(models.ServerMessage{Type: "seatEliminated", Payload: e})
		case engine.MatchEnded:
			r.finishMatch(e.Winner)
		}
	}
}

func (r *Room) broadcast(msg models.ServerMessage) {
	for _, s := range r.seats {
		if s.client != nil {
			s.client.Send(msg)
		}
	}
}

func (r *Room) broadcastExcept(except *seat, msg models.ServerMessage) {
	for _, s := range r.seats {
		if s != except && s.client != nil {
			s.client.Send(msg)
		}
	}
}

func (r *Room) sendToSeat(idx int, msg models.ServerMessage) {
	if idx < 0 || idx >= len(r.seats) {
		return
	}
	if c := r.seats[idx].client; c != nil {
		c.Send(msg)
	}
}

// roomStateFor builds the pre-match room view personalized to one seat.
func (r *Room) roomStateFor(s *seat) models.RoomStatePayload {
	seats := make([]models.SeatInfo, len(r.seats))
	for i, st := range r.seats {
		seats[i] = models.SeatInfo{
			Index:     st.index,
			Name:      st.name,
			IsHost:    st == r.host,
			Connected: st.client != nil,
		}
	}
	yourSeat := -1
	isHost := false
	if s != nil {
		yourSeat = s.index
		isHost = s == r.host
	}
	return models.RoomStatePayload{
		Code:     r.code,
		State:    r.state.String(),
		Seats:    seats,
		YourSeat: yourSeat,
		IsHost:   isHost,
	}
}

// broadcastRoomState pushes each seat its own view; except skips a seat that
// already received the same state in a direct ack.
func (r *Room) broadcastRoomState(except *seat) {
	for _, s := range r.seats {
		if s == except || s.client == nil {
			continue
		}
		s.client.Send(models.ServerMessage{Type: "roomState", Payload: r.roomStateFor(s)})
	}
}
