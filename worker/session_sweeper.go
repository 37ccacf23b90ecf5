package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Purger removes expired provider sessions.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionSweeper periodically purges expired secondary-provider sessions so
// abandoned mailboxes do not keep their tokens around.
type SessionSweeper struct {
	store    Purger
	interval time.Duration
	logger   *logrus.Entry
}

func NewSessionSweeper(store Purger, interval time.Duration, logger *logrus.Entry) *SessionSweeper {
	return &SessionSweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled.
func (sw *SessionSweeper) Start(ctx context.Context) {
	sw.logger.WithField("interval", sw.interval.String()).Info("Session sweeper started")

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("Session sweeper shutting down...")
			return
		case <-ticker.C:
			sw.Sweep(ctx)
		}
	}
}

// Sweep runs one purge pass and returns the number of sessions removed.
func (sw *SessionSweeper) Sweep(ctx context.Context) int64 {
	purged, err := sw.store.PurgeExpired(ctx)
	if err != nil {
		sw.logger.WithError(err).Error("Failed to purge expired sessions")
		return 0
	}
	if purged > 0 {
		sw.logger.WithField("purged", purged).Info("Purged expired provider sessions")
	}
	return purged
}
