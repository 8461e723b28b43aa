package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution is one ledger entry toward a gift's price. Entries are
// append-only and never updated; the integer key doubles as the stable
// tiebreaker when two entries share a timestamp.
type Contribution struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	GiftID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"gift_id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	ReceiptFile   *string         `gorm:"type:text" json:"receipt_file"`
	Note          *string         `gorm:"type:text" json:"note"`
	ContributedAt time.Time       `gorm:"autoCreateTime" json:"contributed_at"`
}

func (Contribution) TableName() string {
	return "gift_contributions"
}
