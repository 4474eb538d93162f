// Package checkin applies check-ins atomically: streak advance, total
// increment and the append-only event row commit or roll back together.
package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/stillalive/api/liveness"
	"github.com/stillalive/api/models"
)

// ErrNotFound is returned when the subject row no longer exists, e.g.
// the account was deleted from a second device mid-request.
var ErrNotFound = errors.New("user not found")

// Store is the persistence surface for recording check-ins. The gorm
// implementation lives in store_gorm.go; tests use an in-memory fake.
type Store interface {
	// GetUserLocked reads the subject with a write lock; only meaningful
	// inside InTx, where it pins the row for the streak computation.
	GetUserLocked(ctx context.Context, id uint) (*models.User, error)
	UpdateCheckInState(ctx context.Context, userID uint, streak, totalCheckIns int, lastCheckIn time.Time) error
	AppendEvent(ctx context.Context, event *models.CheckIn) error
	InTx(ctx context.Context, fn func(Store) error) error
}

// Result is the subject's state after one recorded check-in.
type Result struct {
	CheckedInAt   time.Time
	Streak        int
	TotalCheckIns int
}

// Recorder records check-ins for subjects.
type Recorder struct {
	store Store
	now   func() time.Time
}

// New creates a Recorder over a store.
func New(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// WithClock overrides the time source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record locks the subject row, recomputes the streak, increments the
// total by exactly one and appends one event row. All-or-nothing: a
// failed event append rolls the user update back.
func (r *Recorder) Record(ctx context.Context, userID uint) (Result, error) {
	now := r.now()
	var res Result

	err := r.store.InTx(ctx, func(tx Store) error {
		user, err := tx.GetUserLocked(ctx, userID)
		if err != nil {
			return err
		}

		streak := liveness.NextStreak(now, user.LastCheckIn, user.CheckInFrequency, user.Streak)
		total := user.TotalCheckIns + 1

		if err := tx.UpdateCheckInState(ctx, userID, streak, total, now); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &models.CheckIn{
			UserID:        userID,
			CheckedInAt:   now,
			Streak:        streak,
			TotalCheckIns: total,
		}); err != nil {
			return err
		}

		res = Result{CheckedInAt: now, Streak: streak, TotalCheckIns: total}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
