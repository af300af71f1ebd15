package duel

import (
	"encoding/json"
	"testing"
	"time"

	"shellduel/database"
	"shellduel/duel/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureRater struct {
	calls chan struct {
		winner uint
		losers []uint
	}
}

func (r *captureRater) Rate(winnerID uint, loserIDs []uint, roomCode string) {
	r.calls <- struct {
		winner uint
		losers []uint
	}{winnerID, loserIDs}
}

func TestResultEmitterIdempotent(t *testing.T) {
	logger := zap.NewNop()
	emitter := NewResultEmitter(database.NewResultStore(nil, logger), nil, logger)
	standings := []engine.Standing{
		{Seat: 0, Name: "alice", Place: 1, HP: 2, Shots: 3},
		{Seat: 1, Name: "bob", Place: 2, EliminatedAt: 1, Shots: 2},
	}

	first := emitter.Emit("QXZPD", "match-1", 0, "alice", standings, 10, []uint{11})
	second := emitter.Emit("QXZPD", "match-1", 0, "alice", standings, 10, []uint{11})

	assert.Same(t, first, second, "a repeated emission returns the original record")
	assert.Equal(t, "match-1", first.MatchID)
	assert.Equal(t, "QXZPD", first.RoomCode)
	assert.Equal(t, 0, first.WinnerSeat)
	assert.Equal(t, "alice", first.WinnerName)

	var decoded []engine.Standing
	require.NoError(t, json.Unmarshal([]byte(first.Standings), &decoded))
	assert.Equal(t, standings, decoded)

	got, ok := emitter.Result("match-1")
	assert.True(t, ok)
	assert.Same(t, first, got)
}

func TestResultEmitterRatesOnce(t *testing.T) {
	logger := zap.NewNop()
	rater := &captureRater{calls: make(chan struct {
		winner uint
		losers []uint
	}, 4)}
	emitter := NewResultEmitter(database.NewResultStore(nil, logger), rater, logger)
	standings := []engine.Standing{{Seat: 0, Place: 1}, {Seat: 1, Place: 2}}

	emitter.Emit("QXZPD", "match-2", 0, "alice", standings, 10, []uint{11, 12})
	emitter.Emit("QXZPD", "match-2", 0, "alice", standings, 10, []uint{11, 12})

	select {
	case call := <-rater.calls:
		assert.Equal(t, uint(10), call.winner)
		assert.Equal(t, []uint{11, 12}, call.losers)
	case <-time.After(2 * time.Second):
		t.Fatal("rater was never called")
	}

	select {
	case <-rater.calls:
		t.Fatal("duplicate emission reached the rater")
	case <-time.After(50 * time.Millisecond):
	}
}
