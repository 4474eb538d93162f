// Package sweep finds subjects whose check-in is overdue past the grace
// window and alerts their squad exactly once per overdue episode. The
// idempotency ledger (models.MissedAlert keyed by subject + last
// check-in timestamp) is the only dedup mechanism: a sweep may run any
// number of times without re-notifying, and a new episode after a
// recovery produces a new key and a fresh alert.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/stillalive/api/liveness"
	"github.com/stillalive/api/models"
)

// ErrSweepRunning is returned when a sweep tick fires while the
// previous sweep is still in flight. The caller skips the tick; sweeps
// are never run concurrently.
var ErrSweepRunning = errors.New("sweep already running")

// Candidate is one subject eligible for evaluation together with the
// squad that would be notified.
type Candidate struct {
	User  models.User
	Squad []models.SquadMember
}

// Store is the persistence surface the sweep needs. The gorm
// implementation lives in store_gorm.go; tests use an in-memory fake.
type Store interface {
	// MonitoredUsers returns subjects worth evaluating: a non-empty
	// squad and at least one recorded check-in.
	MonitoredUsers(ctx context.Context) ([]Candidate, error)
	// AlertExists reports whether the ledger already holds key.
	AlertExists(ctx context.Context, key string) (bool, error)
	// SaveAlerts commits ledger rows in one batch with create-if-absent
	// semantics: a conflicting key must be a no-op, not an error.
	SaveAlerts(ctx context.Context, alerts []models.MissedAlert) error
}

// Mailer sends a single missed check-in notification. Content and
// formatting belong to the implementation.
type Mailer interface {
	SendMissedCheckIn(ctx context.Context, to string, user models.User, overdueBy time.Duration) error
}

// Summary reports what one sweep did.
type Summary struct {
	Scanned        int
	Missed         int
	AlreadyAlerted int
	EmailsSent     int
	EmailsFailed   int
	Elapsed        time.Duration
}

// Sweeper evaluates all monitored subjects on demand. Safe for use by a
// single scheduler goroutine plus ad-hoc manual runs; overlapping runs
// are rejected.
type Sweeper struct {
	store   Store
	mailer  Mailer
	log     *zap.SugaredLogger
	now     func() time.Time
	running atomic.Bool
}

// New creates a Sweeper. A nil clock defaults to time.Now.
func New(store Store, mailer Mailer, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{store: store, mailer: mailer, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// AlertKey derives the ledger key for an overdue episode. It depends on
// the exact last check-in value: once the subject checks in again the
// next lapse produces a different key.
func AlertKey(userID uint, lastCheckIn time.Time) string {
	return fmt.Sprintf("%d_%d", userID, lastCheckIn.UnixMilli())
}

// RunOnce performs one full sweep. Ledger rows for every newly missed
// subject are committed in a single batch after all decisions are made;
// notification sends run concurrently and are awaited before the
// summary is returned, but the batch commit does not wait for them.
func (s *Sweeper) RunOnce(ctx context.Context) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, ErrSweepRunning
	}
	defer s.running.Store(false)

	start := s.now()
	candidates, err := s.store.MonitoredUsers(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load monitored users: %w", err)
	}

	var (
		wg      sync.WaitGroup
		sent    atomic.Int64
		failed  atomic.Int64
		pending []models.MissedAlert
		sum     Summary
	)

	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		sum.Scanned++

		// The store filters these already; keep the guards so a looser
		// store implementation cannot cause nil derefs or empty blasts.
		if len(cand.Squad) == 0 || cand.User.LastCheckIn == nil {
			continue
		}

		ev := liveness.Evaluate(start, cand.User.LastCheckIn, cand.User.CheckInFrequency)
		if ev.Status != liveness.StatusOverdue {
			continue
		}

		key := AlertKey(cand.User.ID, *cand.User.LastCheckIn)
		exists, err := s.store.AlertExists(ctx, key)
		if err != nil {
			// Transient store trouble: skip this subject for the tick,
			// the next run re-evaluates it safely.
			s.log.Warnf("sweep: ledger check failed for %s, skipping: %v", key, err)
			continue
		}
		if exists {
			sum.AlreadyAlerted++
			continue
		}

		sum.Missed++
		s.log.Warnf("sweep: missed check-in user=%s overdue=%s severity=%s",
			cand.User.DisplayName, liveness.FormatDuration(ev.OverdueBy), liveness.ClassifySeverity(ev.OverdueBy))

		user := cand.User
		squad := cand.Squad
		overdueBy := ev.OverdueBy
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := s.Dispatch(ctx, user, squad, overdueBy)
			sent.Add(int64(res.Sent))
			failed.Add(int64(res.Failed))
		}()

		pending = append(pending, models.MissedAlert{
			AlertKey:         key,
			UserID:           user.ID,
			UserName:         user.DisplayName,
			LastCheckIn:      *user.LastCheckIn,
			NotifiedEmails:   joinEmails(squad),
			OverdueSeconds:   int64(overdueBy / time.Second),
			CheckInFrequency: user.CheckInFrequency,
			CreatedAt:        start,
		})
	}

	if len(pending) > 0 {
		if err := s.store.SaveAlerts(ctx, pending); err != nil {
			// Not fatal: worst case the next tick re-sends for these
			// episodes. Better a duplicate mail than a crash loop.
			s.log.Errorf("sweep: ledger batch write failed: %v", err)
		}
	}

	wg.Wait()

	sum.EmailsSent = int(sent.Load())
	sum.EmailsFailed = int(failed.Load())
	sum.Elapsed = s.now().Sub(start)
	s.log.Infof("sweep: done in %s scanned=%d missed=%d deduped=%d sent=%d failed=%d",
		sum.Elapsed, sum.Scanned, sum.Missed, sum.AlreadyAlerted, sum.EmailsSent, sum.EmailsFailed)
	return sum, nil
}

func joinEmails(squad []models.SquadMember) string {
	emails := make([]string, 0, len(squad))
	for _, m := range squad {
		emails = append(emails, m.Email)
	}
	return strings.Join(emails, ",")
}
