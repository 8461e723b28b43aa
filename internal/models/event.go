package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event holds the wedding description shown to guests. The API always
// serves the most recently created row.
type Event struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Title                string    `gorm:"not null" json:"title"`
	CoupleNames          string    `gorm:"not null" json:"couple_names"`
	WeddingDate          time.Time `gorm:"not null" json:"wedding_date"`
	Location             string    `json:"location"`
	Address              string    `json:"address"`
	DressCode            string    `gorm:"default:'Elegante'" json:"dress_code"`
	DressCodeDescription *string   `json:"dress_code_description"`
	BannerImageURL       *string   `gorm:"type:text" json:"banner_image_url"`
	AdditionalInfo       *string   `gorm:"type:text" json:"additional_info"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return
}
