package database

import (
	"time"

	"shellduel/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResultStore persists finished-match records. The unique match_id index makes
// a retried emission a no-op.
type ResultStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewResultStore(db *gorm.DB, logger *zap.Logger) *ResultStore {
	return &ResultStore{db: db, logger: logger}
}

func (s *ResultStore) Save(result *models.MatchResult) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_id"}},
		DoNothing: true,
	}).Create(result).Error
}

// PurgeOlderThan drops result rows past the retention window; wired to the
// cron scheduler.
func (s *ResultStore) PurgeOlderThan(age time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.Where("ended_at < ?", time.Now().Add(-age)).Delete(&models.MatchResult{})
	if res.Error != nil {
		s.logger.Error("failed to purge old match results", zap.Error(res.Error))
	}
	return res.RowsAffected, res.Error
}

// ScoreKeeper is the default rating collaborator: it bumps win/loss counters
// on the users table. The duel core only sees the Rate call and never waits
// on it.
type ScoreKeeper struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewScoreKeeper(db *gorm.DB, logger *zap.Logger) *ScoreKeeper {
	return &ScoreKeeper{db: db, logger: logger}
}

func (k *ScoreKeeper) Rate(winnerID uint, loserIDs []uint, roomCode string) {
	if k == nil || k.db == nil {
		return
	}
	if winnerID != 0 {
		if err := k.db.Model(&models.User{}).Where("id = ?", winnerID).
			UpdateColumn("wins", gorm.Expr("wins + 1")).Error; err != nil {
			k.logger.Error("failed to record win", zap.Uint("userID", winnerID), zap.Error(err))
		}
	}
	for _, id := range loserIDs {
		if id == 0 {
			continue
		}
		if err := k.db.Model(&models.User{}).Where("id = ?", id).
			UpdateColumn("losses", gorm.Expr("losses + 1")).Error; err != nil {
			k.logger.Error("failed to record loss", zap.Uint("userID", id), zap.Error(err))
		}
	}
}
