package checkin

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stillalive/api/models"
)

// GormStore backs the recorder with MySQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (g *GormStore) GetUserLocked(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *GormStore) UpdateCheckInState(ctx context.Context, userID uint, streak, totalCheckIns int, lastCheckIn time.Time) error {
	return g.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"streak":          streak,
			"total_check_ins": totalCheckIns,
			"last_check_in":   lastCheckIn,
		}).Error
}

func (g *GormStore) AppendEvent(ctx context.Context, event *models.CheckIn) error {
	return g.db.WithContext(ctx).Create(event).Error
}

func (g *GormStore) InTx(ctx context.Context, fn func(Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
