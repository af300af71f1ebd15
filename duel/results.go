package duel

import (
	"encoding/json"
	"sync"
	"time"

	"shellduel/database"
	"shellduel/duel/engine"
	"shellduel/models"

	"go.uber.org/zap"
)

// Rater receives the outcome of a finished match. The default implementation
// bumps win/loss counters; the emitter never waits on it.
type Rater interface {
	Rate(winnerID uint, loserIDs []uint, roomCode string)
}

// ResultEmitter turns a finished match into exactly one persisted record per
// match ID. A second emission for the same ID, whatever the path that led to
// it, returns the already-built record and touches nothing.
type ResultEmitter struct {
	store  *database.ResultStore
	rater  Rater
	logger *zap.Logger

	mu      sync.Mutex
	emitted map[string]*models.MatchResult
}

func NewResultEmitter(store *database.ResultStore, rater Rater, logger *zap.Logger) *ResultEmitter {
	return &ResultEmitter{
		store:   store,
		rater:   rater,
		logger:  logger,
		emitted: make(map[string]*models.MatchResult),
	}
}

func (e *ResultEmitter) Emit(roomCode, matchID string, winnerSeat int, winnerName string,
	standings []engine.Standing, winnerID uint, loserIDs []uint) *models.MatchResult {
	e.mu.Lock()
	if record, ok := e.emitted[matchID]; ok {
		e.mu.Unlock()
		return record
	}

	standingsJSON, err := json.Marshal(standings)
	if err != nil {
		// Standings are plain structs; this only fires on a programming error.
		e.logger.Error("failed to encode standings",
			zap.String("match", matchID), zap.Error(err))
		standingsJSON = []byte("[]")
	}
	record := &models.MatchResult{
		MatchID:    matchID,
		RoomCode:   roomCode,
		WinnerSeat: winnerSeat,
		WinnerName: winnerName,
		Standings:  string(standingsJSON),
		EndedAt:    time.Now(),
	}
	e.emitted[matchID] = record
	e.mu.Unlock()

	// Persistence and rating run off the room loop; the unique match_id index
	// keeps a crash-and-retry from producing a second row.
	go func() {
		if err := e.store.Save(record); err != nil {
			e.logger.Error("failed to persist match result",
				zap.String("match", matchID), zap.Error(err))
		}
		if e.rater != nil {
			e.rater.Rate(winnerID, loserIDs, roomCode)
		}
	}()
	return record
}

// Result returns the in-memory record for a match ID, if this process
// emitted it.
func (e *ResultEmitter) Result(matchID string) (*models.MatchResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, ok := e.emitted[matchID]
	return record, ok
}
