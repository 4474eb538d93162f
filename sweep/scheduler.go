package sweep

import (
	"context"
	"errors"
	"time"
)

const (
	defaultInterval     = time.Hour
	defaultStartupDelay = 5 * time.Second
)

// Start launches the background sweep loop: one run shortly after
// process start, then one per interval until ctx is cancelled. Ticks
// that fire while a sweep is still running are skipped.
func (s *Sweeper) Start(ctx context.Context, interval, startupDelay time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	if startupDelay <= 0 {
		startupDelay = defaultStartupDelay
	}

	go func() {
		select {
		case <-time.After(startupDelay):
		case <-ctx.Done():
			return
		}
		s.runLogged(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runLogged(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Sweeper) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrSweepRunning) {
			s.log.Debug("sweep: previous run still in progress, tick skipped")
			return
		}
		s.log.Errorf("sweep: run failed: %v", err)
	}
}
