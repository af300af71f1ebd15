package duel

import (
	"testing"
	"time"

	"shellduel/database"
	"shellduel/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Tests drive rooms through the same entry points the websocket layer uses,
// with clients whose pumps never start: outbound messages pile up in the send
// buffer where assertions can read them. Reconnect tokens go through a real
// (in-process) Redis so the grace records are exercised end to end.

func newTestHub(t *testing.T, grace time.Duration) (*Hub, *miniredis.Miniredis) {
	t.Helper()
	logger := zap.NewNop()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := database.NewTokenStore(rdb, logger)
	results := database.NewResultStore(nil, logger)
	emitter := NewResultEmitter(results, nil, logger)
	return NewHub(tokens, emitter, grace, logger), mr
}

func newTestClient(hub *Hub, id uint, name string) *Client {
	return newClient(nil, hub, id, name, zap.NewNop())
}

// recvType drains a client's outbox until a message of the wanted type shows
// up.
func recvType(t *testing.T, c *Client, msgType string) models.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.send:
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
		}
	}
}

// flush waits until the room loop has processed everything queued before it.
func flush(t *testing.T, r *Room) {
	t.Helper()
	done := make(chan struct{})
	r.post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("room loop stalled")
	}
}

func createRoom(t *testing.T, hub *Hub, host *Client, password string) *Room {
	t.Helper()
	hub.CreateRoom(host, password)
	msg := recvType(t, host, "roomCreated")
	state := msg.Payload.(models.RoomStatePayload)
	room := hub.roomByCode(state.Code)
	require.NotNil(t, room)
	return room
}

func startMatch(t *testing.T, hub *Hub) (*Room, *Client, *Client, models.MatchStartedPayload, models.MatchStartedPayload) {
	t.Helper()
	host := newTestClient(hub, 1, "alice")
	guest := newTestClient(hub, 2, "bob")
	room := createRoom(t, hub, host, "")
	room.Join(guest, "", false)
	recvType(t, guest, "roomJoined")
	room.Start(host)
	hostStart := recvType(t, host, "matchStarted").Payload.(models.MatchStartedPayload)
	guestStart := recvType(t, guest, "matchStarted").Payload.(models.MatchStartedPayload)
	return room, host, guest, hostStart, guestStart
}

func TestCreateAndJoinRoom(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	host := newTestClient(hub, 1, "alice")
	guest := newTestClient(hub, 2, "bob")

	room := createRoom(t, hub, host, "")

	room.Join(guest, "", false)
	state := recvType(t, guest, "roomJoined").Payload.(models.RoomStatePayload)
	assert.Equal(t, 1, state.YourSeat)
	assert.False(t, state.IsHost)
	require.Len(t, state.Seats, 2)
	assert.True(t, state.Seats[0].IsHost)

	flush(t, room)
	summaries := hub.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].Occupancy)
	assert.False(t, summaries[0].HasPassword)
}

func TestJoinPasswordChecked(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	host := newTestClient(hub, 1, "alice")
	room := createRoom(t, hub, host, "hunter2")

	intruder := newTestClient(hub, 2, "mallory")
	room.Join(intruder, "wrong", false)
	errMsg := recvType(t, intruder, "joinError").Payload.(models.ErrorPayload)
	assert.Equal(t, "wrong_password", errMsg.Reason)

	guest := newTestClient(hub, 3, "bob")
	room.Join(guest, "hunter2", false)
	recvType(t, guest, "roomJoined")
}

func TestJoinFullRoomRejected(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	host := newTestClient(hub, 1, "p1")
	room := createRoom(t, hub, host, "")
	for i := uint(2); i <= 4; i++ {
		c := newTestClient(hub, i, "p")
		room.Join(c, "", false)
		recvType(t, c, "roomJoined")
	}

	fifth := newTestClient(hub, 5, "p5")
	room.Join(fifth, "", false)
	errMsg := recvType(t, fifth, "joinError").Payload.(models.ErrorPayload)
	assert.Equal(t, "room_full", errMsg.Reason)
}

func TestStartRequiresHostAndPlayers(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	host := newTestClient(hub, 1, "alice")
	room := createRoom(t, hub, host, "")

	room.Start(host)
	errMsg := recvType(t, host, "actionRejected").Payload.(models.ErrorPayload)
	assert.Equal(t, "insufficient_players", errMsg.Reason)

	guest := newTestClient(hub, 2, "bob")
	room.Join(guest, "", false)
	recvType(t, guest, "roomJoined")
	room.Start(guest)
	errMsg = recvType(t, guest, "actionRejected").Payload.(models.ErrorPayload)
	assert.Equal(t, "not_host", errMsg.Reason)
}

func TestMatchStartDealsSeatsAndTokens(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	room, host, guest, hostStart, guestStart := startMatch(t, hub)

	assert.Equal(t, 0, hostStart.Seat)
	assert.Equal(t, 1, guestStart.Seat)
	assert.NotEmpty(t, hostStart.ReconnectToken)
	assert.NotEmpty(t, guestStart.ReconnectToken)
	assert.NotEqual(t, hostStart.ReconnectToken, guestStart.ReconnectToken)
	assert.Equal(t, 1, hostStart.Snapshot.Round)

	recvType(t, host, "turnChanged")
	recvType(t, guest, "turnChanged")

	flush(t, room)
	assert.Empty(t, hub.Summaries(), "running rooms leave the lobby list")

	room.Start(host)
	errMsg := recvType(t, host, "actionRejected").Payload.(models.ErrorPayload)
	assert.Equal(t, "already_started", errMsg.Reason)
}

func TestJoinDuringMatchRejected(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	room, _, _, _, _ := startMatch(t, hub)

	late := newTestClient(hub, 9, "carol")
	room.Join(late, "", false)
	errMsg := recvType(t, late, "joinError").Payload.(models.ErrorPayload)
	assert.Equal(t, "already_in_progress", errMsg.Reason)
}

func TestReconnectRotatesToken(t *testing.T) {
	hub, mr := newTestHub(t, time.Minute)
	room, host, guest, _, guestStart := startMatch(t, hub)

	hub.DropClient(guest)
	recvType(t, host, "seatDisconnected")
	assert.True(t, mr.Exists("reconnect:"+guestStart.ReconnectToken),
		"the grace record is written on disconnect")

	comeback := newTestClient(hub, 2, "bob")
	hub.Reconnect(comeback, room.Code(), guestStart.ReconnectToken)
	payload := recvType(t, comeback, "reconnected").Payload.(models.ReconnectedPayload)
	assert.Equal(t, 1, payload.Seat)
	assert.NotEqual(t, guestStart.ReconnectToken, payload.ReconnectToken,
		"each grant is single use")
	assert.Equal(t, 1, payload.Snapshot.Round)
	recvType(t, host, "seatReconnected")
	assert.False(t, mr.Exists("reconnect:"+guestStart.ReconnectToken),
		"the grant consumes the grace record")

	// The spent token is dead.
	stale := newTestClient(hub, 2, "bob")
	hub.Reconnect(stale, room.Code(), guestStart.ReconnectToken)
	errMsg := recvType(t, stale, "reconnectError").Payload.(models.ErrorPayload)
	assert.Equal(t, "token_invalid", errMsg.Reason)
}

func TestReconnectWhileSeatActive(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	room, _, _, _, guestStart := startMatch(t, hub)

	second := newTestClient(hub, 2, "bob")
	hub.Reconnect(second, room.Code(), guestStart.ReconnectToken)
	msg := recvType(t, second, "alreadyActive").Payload.(models.AlreadyInGamePayload)
	assert.Equal(t, room.Code(), msg.RoomCode)
	assert.True(t, msg.MatchStarted)
}

func TestReconnectRequiresStoredGrace(t *testing.T) {
	// The stored record is the authority: once it expires server-side, a
	// matching in-memory token alone grants nothing, even while the local
	// timer is still pending.
	hub, mr := newTestHub(t, time.Minute)
	room, host, guest, _, guestStart := startMatch(t, hub)

	hub.DropClient(guest)
	recvType(t, host, "seatDisconnected")
	mr.FastForward(2 * time.Minute)

	comeback := newTestClient(hub, 2, "bob")
	hub.Reconnect(comeback, room.Code(), guestStart.ReconnectToken)
	errMsg := recvType(t, comeback, "reconnectError").Payload.(models.ErrorPayload)
	assert.Equal(t, "token_expired", errMsg.Reason)
}

func TestForfeitedSeatTokenReportsExpired(t *testing.T) {
	hub, _ := newTestHub(t, 30*time.Millisecond)
	host := newTestClient(hub, 1, "alice")
	g1 := newTestClient(hub, 2, "bob")
	g2 := newTestClient(hub, 3, "carol")
	room := createRoom(t, hub, host, "")
	room.Join(g1, "", false)
	recvType(t, g1, "roomJoined")
	room.Join(g2, "", false)
	recvType(t, g2, "roomJoined")
	room.Start(host)
	g2Start := recvType(t, g2, "matchStarted").Payload.(models.MatchStartedPayload)

	// Three players, so the forfeit leaves the match running.
	hub.DropClient(g2)
	recvType(t, host, "seatForfeited")

	late := newTestClient(hub, 3, "carol")
	hub.Reconnect(late, room.Code(), g2Start.ReconnectToken)
	errMsg := recvType(t, late, "reconnectError").Payload.(models.ErrorPayload)
	assert.Equal(t, "token_expired", errMsg.Reason,
		"a forfeited seat's token reports expiry, not an unknown token")
}

func TestGraceExpiryForfeitsSeat(t *testing.T) {
	hub, _ := newTestHub(t, 30*time.Millisecond)
	room, host, guest, _, guestStart := startMatch(t, hub)

	hub.DropClient(guest)
	recvType(t, host, "seatDisconnected")
	recvType(t, host, "seatForfeited")
	result := recvType(t, host, "matchEnded").Payload.(models.MatchResultPayload)
	assert.Equal(t, 0, result.Winner, "the remaining seat wins")
	assert.NotEmpty(t, result.MatchID)

	// Far too late: the match is over and the token is gone.
	late := newTestClient(hub, 2, "bob")
	hub.Reconnect(late, room.Code(), guestStart.ReconnectToken)
	errMsg := recvType(t, late, "reconnectError").Payload.(models.ErrorPayload)
	assert.Equal(t, "not_found", errMsg.Reason)
}

func TestReconnectBeatsGraceTimer(t *testing.T) {
	// A reconnect queued before the expiry event wins, whatever the wall
	// clock says by the time the room gets to it.
	hub, _ := newTestHub(t, time.Minute)
	room, host, guest, _, guestStart := startMatch(t, hub)

	hub.DropClient(guest)
	recvType(t, host, "seatDisconnected")

	comeback := newTestClient(hub, 2, "bob")
	hub.Reconnect(comeback, room.Code(), guestStart.ReconnectToken)
	recvType(t, comeback, "reconnected")

	// A straggling expiry for the same seat must be a no-op now.
	room.post(func() { room.handleGraceExpired(1) })
	flush(t, room)
	assert.True(t, room.seats[1].client == comeback)
	assert.False(t, room.seats[1].forfeited)
}

func TestLeaveMidMatchForfeits(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	_, host, guest, _, _ := startMatch(t, hub)

	guest.dispatch(models.ClientMessage{Type: "leaveRoom"})
	recvType(t, guest, "roomLeft")
	recvType(t, host, "seatForfeited")
	result := recvType(t, host, "matchEnded").Payload.(models.MatchResultPayload)
	assert.Equal(t, 0, result.Winner)
}

func TestWaitingRoomHostHandoff(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	host := newTestClient(hub, 1, "alice")
	guest := newTestClient(hub, 2, "bob")
	room := createRoom(t, hub, host, "")
	room.Join(guest, "", false)
	recvType(t, guest, "roomJoined")

	room.Leave(host)
	recvType(t, host, "roomLeft")
	state := recvType(t, guest, "roomState").Payload.(models.RoomStatePayload)
	assert.True(t, state.IsHost, "remaining seat inherits the host role")
	assert.Equal(t, 0, state.YourSeat)
}

func TestRoomDestroyedWhenEmpty(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	host := newTestClient(hub, 1, "alice")
	room := createRoom(t, hub, host, "")

	room.Leave(host)
	recvType(t, host, "roomLeft")

	deadline := time.Now().Add(2 * time.Second)
	for hub.roomByCode(room.Code()) != nil {
		if time.Now().After(deadline) {
			t.Fatal("empty room was not destroyed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestShootFlowsThroughRoom(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	room, host, guest, hostStart, _ := startMatch(t, hub)

	if hostStart.Snapshot.Turn != 0 {
		t.Fatalf("expected seat 0 to open the match")
	}

	// Acting out of turn is rejected with the engine's reason code.
	room.Shoot(guest, 0)
	errMsg := recvType(t, guest, "actionRejected").Payload.(models.ErrorPayload)
	assert.Equal(t, "not_your_turn", errMsg.Reason)

	room.Shoot(host, 1)
	shot := recvType(t, guest, "shotResolved")
	assert.NotNil(t, shot.Payload)
}

func TestUseItemUnknownKindRejected(t *testing.T) {
	hub, _ := newTestHub(t, time.Minute)
	room, host, _, _, _ := startMatch(t, hub)

	room.UseItem(host, "grenade", nil)
	errMsg := recvType(t, host, "actionRejected").Payload.(models.ErrorPayload)
	assert.Equal(t, "item_unknown", errMsg.Reason)
}
