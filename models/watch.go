package models

import "time"

// Watch links a watcher to the user they follow. One row per pair;
// creating or deleting a row must adjust the target's WatchersCount in
// the same transaction.
type Watch struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WatcherID  uint      `gorm:"not null;uniqueIndex:idx_watch_pair,priority:1" json:"-"`
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_watch_pair,priority:2;index" json:"-"`
	TargetCode string    `gorm:"size:6" json:"code"`
	CustomName string    `gorm:"size:64" json:"name"`
	AddedAt    time.Time `json:"added_at"`
	CreatedAt  time.Time `json:"-"`
}
