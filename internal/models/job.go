package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job is created open and closes either on the client's request or when one
// of its proposals is accepted. Proposals, messages, the payment and the
// review all cascade with it.
type Job struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    uuid.UUID                   `gorm:"type:uuid;index;not null" json:"client_id"`
	Title       string                      `gorm:"type:varchar(200);not null" json:"title"`
	Description string                      `gorm:"type:text;not null" json:"description"`
	Budget      decimal.Decimal             `gorm:"type:numeric(12,2);not null" json:"budget"`
	Deadline    *datatypes.Date             `json:"deadline"`
	CategoryID  *uuid.UUID                  `gorm:"type:uuid;index" json:"category_id"`
	Skills      datatypes.JSONSlice[string] `json:"skills"`
	IsOpen      bool                        `gorm:"not null;default:true;index" json:"is_open"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client   *User     `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"client,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Skills == nil {
		j.Skills = datatypes.JSONSlice[string]{}
	}
	return
}
