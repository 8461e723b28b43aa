package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Gift types form a closed set even though the column stays a plain string.
const (
	GiftTypeTicket           = "Ticket"
	GiftTypeOpenContribution = "Open contribution"
	GiftTypeFullPayment      = "Full payment"
)

// Gift is a catalog item guests can fund up to its price. IsContributed is
// a cached flag maintained by the accounting service; the ledger is the
// source of truth. Gifts are hard-deleted, so the contributions table may
// hold rows for gifts that no longer exist (see the orphans report).
type Gift struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	Name          string          `gorm:"not null" json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Currency      string          `gorm:"not null;default:'PEN'" json:"currency"`
	CategoryID    *uuid.UUID      `gorm:"type:uuid;index" json:"category_id"`
	Category      *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Available     int             `gorm:"not null;default:1" json:"available"`
	Total         int             `gorm:"not null;default:1" json:"total"`
	GiftType      string          `gorm:"not null;default:'Full payment'" json:"gift_type"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	IsContributed bool            `gorm:"not null;default:false" json:"is_contributed"`
	ImageURL      *string         `gorm:"type:text" json:"image_url"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (gift *Gift) BeforeCreate(tx *gorm.DB) (err error) {
	if gift.ID == uuid.Nil {
		gift.ID = uuid.New()
	}
	return
}

func ValidGiftType(giftType string) bool {
	switch giftType {
	case GiftTypeTicket, GiftTypeOpenContribution, GiftTypeFullPayment:
		return true
	}
	return false
}
