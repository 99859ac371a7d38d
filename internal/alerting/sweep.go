package alerting

import (
	"context"
	"log"
	"time"

	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
)

// Sweeper reactivates snoozed alerts whose snooze window has expired.
type Sweeper struct {
	store    storage.Store
	clock    source.Clock
	interval time.Duration
}

// NewSweeper creates a snooze-expiry sweeper. interval defaults to one
// minute.
func NewSweeper(store storage.Store, clock source.Clock, interval time.Duration) *Sweeper {
	if clock == nil {
		clock = source.SystemClock{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, clock: clock, interval: interval}
}

// Run sweeps until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Printf("alerting: snooze sweep: %v", err)
			}
		}
	}
}

// SweepOnce flips expired snoozes back to active, returning how many.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	return s.store.Alerts().ReactivateSnoozedBefore(ctx, s.clock.Now().UTC())
}
