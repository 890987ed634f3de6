package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile is informational only; nothing in the job lifecycle reads it
// except the rating aggregate written when a review is filed.
type Profile struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	Title          string                      `gorm:"type:varchar(120)" json:"title"`
	Bio            string                      `gorm:"type:text" json:"bio"`
	Skills         datatypes.JSONSlice[string] `json:"skills"`
	HourlyRate     decimal.Decimal             `gorm:"type:numeric(10,2);not null;default:0" json:"hourly_rate"`
	Rating         decimal.Decimal             `gorm:"type:numeric(3,2);not null;default:0" json:"rating"`
	AvatarURL      string                      `gorm:"type:text" json:"avatar_url"`
	Certifications datatypes.JSONSlice[string] `json:"certifications"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Skills == nil {
		p.Skills = datatypes.JSONSlice[string]{}
	}
	if p.Certifications == nil {
		p.Certifications = datatypes.JSONSlice[string]{}
	}
	return
}
