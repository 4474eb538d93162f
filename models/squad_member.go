package models

import "time"

// SquadMember is one trusted contact in a user's safety squad.
// Emails are stored lowercased; at most MaxSquadMembers rows per user.
type SquadMember struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MemberID  string    `gorm:"size:36;uniqueIndex;not null" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_squad_user_email,priority:1" json:"-"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:idx_squad_user_email,priority:2" json:"email"`
	AddedAt   time.Time `json:"added_at"`
	CreatedAt time.Time `json:"-"`
}

// MaxSquadMembers caps the number of alert recipients per user.
const MaxSquadMembers = 5
