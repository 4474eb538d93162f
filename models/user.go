package models

import (
	"time"

	"gorm.io/gorm"
)

// User is one monitored subject. Identity is the opaque device id the
// mobile client generates; the row is created lazily on first request.
type User struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	DeviceID         string     `gorm:"size:128;uniqueIndex;not null" json:"device_id"`
	DisplayName      string     `gorm:"size:64;default:User" json:"display_name"`
	Code             string     `gorm:"size:6;index" json:"code,omitempty"`
	CheckInFrequency int        `gorm:"default:1" json:"check_in_frequency"`
	Streak           int        `gorm:"default:0" json:"streak"`
	TotalCheckIns    int        `gorm:"default:0" json:"total_check_ins"`
	LastCheckIn      *time.Time `json:"last_check_in"`
	WatchersCount    int        `gorm:"default:0" json:"watchers_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
