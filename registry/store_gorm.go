package registry

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stillalive/api/models"
)

// GormStore backs the registry with MySQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (g *GormStore) FindUserByCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).Where("code = ?", code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *GormStore) GetUserLocked(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *GormStore) GetWatch(ctx context.Context, id uint) (*models.Watch, error) {
	var watch models.Watch
	err := g.db.WithContext(ctx).First(&watch, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &watch, nil
}

func (g *GormStore) FindWatch(ctx context.Context, watcherID, targetID uint) (*models.Watch, error) {
	var watch models.Watch
	err := g.db.WithContext(ctx).
		Where("watcher_id = ? AND target_id = ?", watcherID, targetID).
		First(&watch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &watch, nil
}

func (g *GormStore) ListByWatcher(ctx context.Context, watcherID uint) ([]models.Watch, error) {
	var watches []models.Watch
	err := g.db.WithContext(ctx).
		Where("watcher_id = ?", watcherID).
		Order("added_at ASC").
		Find(&watches).Error
	return watches, err
}

func (g *GormStore) ListByTarget(ctx context.Context, targetID uint) ([]models.Watch, error) {
	var watches []models.Watch
	err := g.db.WithContext(ctx).Where("target_id = ?", targetID).Find(&watches).Error
	return watches, err
}

// CreateWatch inserts the pair row. A duplicate-key error from the
// unique (watcher, target) index means a racing AddWatch slipped past
// the pre-check; it surfaces as ErrConflict, not an internal error.
func (g *GormStore) CreateWatch(ctx context.Context, w *models.Watch) error {
	err := g.db.WithContext(ctx).Create(w).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

func (g *GormStore) DeleteWatch(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Delete(&models.Watch{}, id).Error
}

func (g *GormStore) SetWatchersCount(ctx context.Context, userID uint, count int) error {
	return g.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("watchers_count", count).Error
}

// InTx runs fn in a database transaction.
func (g *GormStore) InTx(ctx context.Context, fn func(Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
