// Package registry manages who is watching whom. Each watch row is
// paired with a denormalized WatchersCount on the target user; every
// create/delete adjusts the counter in the same transaction so the
// count always converges on the number of live rows.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/stillalive/api/liveness"
	"github.com/stillalive/api/models"
)

// WatchView is one row of a watcher's list, joined with the target's
// current liveness state.
type WatchView struct {
	ID               uint       `json:"id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	AddedAt          time.Time  `json:"added_at"`
	Status           string     `json:"status"`
	LastCheckIn      *time.Time `json:"last_check_in"`
	TimeSinceSeconds int64      `json:"time_since_check_in_seconds"`
	Target           TargetInfo `json:"target"`
}

// TargetInfo is the public snapshot of a watched user.
type TargetInfo struct {
	DisplayName      string `json:"display_name"`
	Streak           int    `json:"streak"`
	TotalCheckIns    int    `json:"total_check_ins"`
	CheckInFrequency int    `json:"check_in_frequency"`
}

const (
	statusAlive  = "alive"
	statusMissed = "missed"
)

// Registry is the watch service.
type Registry struct {
	store Store
	now   func() time.Time
}

// New creates a Registry over a store.
func New(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// WithClock overrides the time source.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// AddWatch resolves a share code and starts watching its owner. Fails
// with ErrCodeNotFound for an unknown code, ErrSelfWatch when the code
// is the watcher's own, and ErrConflict when the pair already exists.
// The row insert and the counter increment happen in one transaction,
// reads first.
func (r *Registry) AddWatch(ctx context.Context, watcherID uint, code, customName string) (*models.Watch, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	target, err := r.store.FindUserByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if target.ID == watcherID {
		return nil, ErrSelfWatch
	}

	if _, err := r.store.FindWatch(ctx, watcherID, target.ID); err == nil {
		return nil, ErrConflict
	} else if err != ErrNotFound {
		return nil, err
	}

	name := strings.TrimSpace(customName)
	if name == "" {
		name = target.DisplayName
	}
	if name == "" {
		name = "User " + code
	}

	watch := &models.Watch{
		WatcherID:  watcherID,
		TargetID:   target.ID,
		TargetCode: code,
		CustomName: name,
		AddedAt:    r.now(),
	}

	err = r.store.InTx(ctx, func(tx Store) error {
		current, err := tx.GetUserLocked(ctx, target.ID)
		if err != nil {
			return err
		}
		if err := tx.CreateWatch(ctx, watch); err != nil {
			return err
		}
		return tx.SetWatchersCount(ctx, current.ID, safeCount(current.WatchersCount)+1)
	})
	if err != nil {
		return nil, err
	}
	return watch, nil
}

// RemoveWatch deletes a watch owned by requesterID and decrements the
// target's counter, floored at zero.
func (r *Registry) RemoveWatch(ctx context.Context, watchID, requesterID uint) error {
	return r.store.InTx(ctx, func(tx Store) error {
		watch, err := tx.GetWatch(ctx, watchID)
		if err != nil {
			return err
		}
		if watch.WatcherID != requesterID {
			return ErrForbidden
		}

		target, err := tx.GetUserLocked(ctx, watch.TargetID)
		if err != nil && err != ErrNotFound {
			return err
		}
		if err := tx.DeleteWatch(ctx, watch.ID); err != nil {
			return err
		}
		if target != nil {
			return tx.SetWatchersCount(ctx, target.ID, decrement(target.WatchersCount))
		}
		return nil
	})
}

// RemoveAllForUser is the account-deletion cascade: rows where the user
// watches someone get the paired decrement on their targets; rows where
// the user is the target are plainly deleted (the counter dies with the
// user row).
func (r *Registry) RemoveAllForUser(ctx context.Context, userID uint) error {
	asWatcher, err := r.store.ListByWatcher(ctx, userID)
	if err != nil {
		return err
	}
	for _, w := range asWatcher {
		watch := w
		err := r.store.InTx(ctx, func(tx Store) error {
			target, err := tx.GetUserLocked(ctx, watch.TargetID)
			if err != nil && err != ErrNotFound {
				return err
			}
			if err := tx.DeleteWatch(ctx, watch.ID); err != nil {
				return err
			}
			if target != nil {
				return tx.SetWatchersCount(ctx, target.ID, decrement(target.WatchersCount))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	asTarget, err := r.store.ListByTarget(ctx, userID)
	if err != nil {
		return err
	}
	for _, w := range asTarget {
		if err := r.store.DeleteWatch(ctx, w.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListWatching returns the watcher's list with per-target status.
// Display status uses elapsed-since-check-in against the bare interval,
// deliberately stricter than the alerting grace window: the UI shows
// "missed" before the squad gets mailed.
func (r *Registry) ListWatching(ctx context.Context, watcherID uint) ([]WatchView, error) {
	watches, err := r.store.ListByWatcher(ctx, watcherID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	views := make([]WatchView, 0, len(watches))
	for _, w := range watches {
		target, err := r.store.GetUser(ctx, w.TargetID)
		if err == ErrNotFound {
			// Target account deleted; the cascade will collect the row.
			continue
		}
		if err != nil {
			return nil, err
		}

		view := WatchView{
			ID:          w.ID,
			Code:        w.TargetCode,
			Name:        w.CustomName,
			AddedAt:     w.AddedAt,
			Status:      statusMissed,
			LastCheckIn: target.LastCheckIn,
			Target: TargetInfo{
				DisplayName:      target.DisplayName,
				Streak:           target.Streak,
				TotalCheckIns:    target.TotalCheckIns,
				CheckInFrequency: target.CheckInFrequency,
			},
		}
		if target.LastCheckIn != nil {
			elapsed := now.Sub(*target.LastCheckIn)
			view.TimeSinceSeconds = int64(elapsed / time.Second)
			if elapsed <= liveness.Interval(target.CheckInFrequency) {
				view.Status = statusAlive
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func safeCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}
