package utils

import (
	"time"

	"shellduel/database"
	"shellduel/duel"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const resultRetention = 90 * 24 * time.Hour

// CronCleaner schedules the background housekeeping: room expiry sweeps every
// minute and match-result retention once a day. Destruction itself always
// happens inside each room's own loop.
func CronCleaner(hub *duel.Hub, results *database.ResultStore, logger *zap.Logger) *cron.Cron {
	c := cron.New()

	c.AddFunc("@every 1m", func() {
		hub.Sweep()
	})

	c.AddFunc("0 3 * * *", func() {
		logger.Info("purging old match results")
		deleted, err := results.PurgeOlderThan(resultRetention)
		if err == nil {
			logger.Info("match result purge complete", zap.Int64("deleted", deleted))
		}
	})

	c.Start()
	return c
}
