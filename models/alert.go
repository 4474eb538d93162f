package models

import "time"

// MissedAlert is the idempotency ledger for missed check-in alerts.
// AlertKey is derived from (user id, last check-in timestamp), so a row
// exists at most once per distinct overdue episode. Rows are written
// only by the sweep and removed only when the account is deleted.
type MissedAlert struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AlertKey         string    `gorm:"size:64;uniqueIndex;not null" json:"alert_key"`
	UserID           uint      `gorm:"index;not null" json:"user_id"`
	UserName         string    `gorm:"size:64" json:"user_name"`
	LastCheckIn      time.Time `json:"last_check_in"`
	NotifiedEmails   string    `gorm:"size:2048" json:"notified_emails"`
	OverdueSeconds   int64     `json:"overdue_seconds"`
	CheckInFrequency int       `json:"check_in_frequency"`
	CreatedAt        time.Time `json:"created_at"`
}
