package models

import (
	"time"
)

// Countable action kinds
const (
	ActionVote        = "vote"
	ActionLawsuitSign = "lawsuit_sign"
)

// UserAction records that a user performed a countable action on a
// nomination. The composite unique index is the storage-level guarantee
// that a (user, nomination, kind) triple is counted at most once; the
// service layer checks it first only to return a friendly error.
type UserAction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_user_nomination_kind" json:"user_id"`
	NominationID uint      `gorm:"not null;uniqueIndex:idx_user_nomination_kind" json:"nomination_id"`
	Kind         string    `gorm:"size:20;not null;uniqueIndex:idx_user_nomination_kind" json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for UserAction model
func (UserAction) TableName() string {
	return "user_actions"
}
