package registry

import (
	"context"
	"errors"

	"github.com/stillalive/api/models"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrNotFound     = errors.New("watch entry not found")
	ErrForbidden    = errors.New("watch entry belongs to a different device")
	ErrConflict     = errors.New("already watching this person")
	ErrSelfWatch    = errors.New("cannot watch yourself")
	ErrCodeNotFound = errors.New("share code does not exist")
)

// Store is the persistence surface for watch relationships and the
// denormalized watcher counters. InTx runs fn atomically; within it all
// reads must happen before writes, which Registry guarantees.
type Store interface {
	FindUserByCode(ctx context.Context, code string) (*models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	// GetUserLocked reads a user with a write lock; only meaningful
	// inside InTx, where it pins the row for the read-modify-write of
	// WatchersCount.
	GetUserLocked(ctx context.Context, id uint) (*models.User, error)

	GetWatch(ctx context.Context, id uint) (*models.Watch, error)
	FindWatch(ctx context.Context, watcherID, targetID uint) (*models.Watch, error)
	ListByWatcher(ctx context.Context, watcherID uint) ([]models.Watch, error)
	ListByTarget(ctx context.Context, targetID uint) ([]models.Watch, error)

	CreateWatch(ctx context.Context, w *models.Watch) error
	DeleteWatch(ctx context.Context, id uint) error
	SetWatchersCount(ctx context.Context, userID uint, count int) error

	InTx(ctx context.Context, fn func(Store) error) error
}
