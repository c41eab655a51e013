package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LawsuitSignature holds the details a user submits when signing a lawsuit
// petition against a nomination. The counted pledge itself lives in
// UserAction; this row carries the contact and loss details collected by
// the petition form.
type LawsuitSignature struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;index" json:"user_id"`
	NominationID  uint            `gorm:"not null;index" json:"nomination_id"`
	FirstName     string          `gorm:"size:100" json:"first_name"`
	LastName      string          `gorm:"size:100" json:"last_name"`
	Email         string          `gorm:"size:255" json:"email"`
	Country       string          `gorm:"size:100" json:"country"`
	PhoneNumber   string          `gorm:"size:50" json:"phone_number"`
	WalletAddress string          `gorm:"size:64" json:"wallet_address"`
	AmountLostUSD decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"amount_lost_usd"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName specifies the table name for LawsuitSignature model
func (LawsuitSignature) TableName() string {
	return "lawsuit_signatures"
}
