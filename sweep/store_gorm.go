package sweep

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stillalive/api/models"
)

// GormStore backs the sweep with MySQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// MonitoredUsers loads every user that has at least one squad member
// and a recorded check-in, with their squads attached. Users without a
// squad are filtered in SQL so the sweep never loads them at all.
func (g *GormStore) MonitoredUsers(ctx context.Context) ([]Candidate, error) {
	var users []models.User
	sub := g.db.Model(&models.SquadMember{}).Select("user_id")
	if err := g.db.WithContext(ctx).
		Where("last_check_in IS NOT NULL").
		Where("id IN (?)", sub).
		Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	var members []models.SquadMember
	if err := g.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Order("added_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}

	byUser := make(map[uint][]models.SquadMember, len(users))
	for _, m := range members {
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}

	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		candidates = append(candidates, Candidate{User: u, Squad: byUser[u.ID]})
	}
	return candidates, nil
}

// AlertExists reports whether the ledger already contains key.
func (g *GormStore) AlertExists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.MissedAlert{}).
		Where("alert_key = ?", key).
		Count(&count).Error
	return count > 0, err
}

// SaveAlerts batch-inserts ledger rows. The unique alert_key index plus
// ON CONFLICT DO NOTHING makes the write safe against a racing sweep:
// duplicate keys are silently dropped instead of erroring.
func (g *GormStore) SaveAlerts(ctx context.Context, alerts []models.MissedAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "alert_key"}}, DoNothing: true}).
		CreateInBatches(alerts, 100).Error
}
