package models

import "time"

// CheckIn is one row per successful check-in. Append-only audit trail;
// never read by the monitoring logic.
type CheckIn struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	CheckedInAt   time.Time `gorm:"index;not null" json:"checked_in_at"`
	Streak        int       `json:"streak"`
	TotalCheckIns int       `json:"total_check_ins"`
	CreatedAt     time.Time `json:"created_at"`
}
