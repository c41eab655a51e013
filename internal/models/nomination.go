package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Nomination statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatus reports whether s is a known nomination status.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Nomination represents a submitted scammer record. The numeric ID is what
// user actions reference; PublicID is the opaque identifier exposed in URLs
// shared outside the API.
type Nomination struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	PublicID          string          `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	Name              string          `gorm:"size:255;not null" json:"name"`
	TwitterHandle     string          `gorm:"size:100;not null" json:"twitter_handle"`
	ScamDescription   string          `gorm:"type:text;not null" json:"scam_description"`
	AmountStolenUSD   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_stolen_usd"`
	TokenName         *string         `gorm:"size:100" json:"token_name,omitempty"`
	Votes             int             `gorm:"default:0;not null" json:"votes"`
	LawsuitSignatures int             `gorm:"default:0;not null" json:"lawsuit_signatures"`
	TargetSignatures  int             `gorm:"default:1000;not null" json:"target_signatures"`
	Status            string          `gorm:"size:20;default:pending;index" json:"status"`
	IsPinned          bool            `gorm:"default:false" json:"is_pinned"`
	ImageURL          *string         `json:"image_url,omitempty"`
	CreatedBy         uint            `gorm:"index" json:"created_by"`
	LastModifiedBy    *uint           `json:"last_modified_by,omitempty"`
	LastModifiedAt    *time.Time      `json:"last_modified_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Nomination model
func (Nomination) TableName() string {
	return "nominations"
}
