package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is one-to-one with its job. Released implies EscrowHeld; once
// released the record no longer changes.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	JobID         uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"job_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	EscrowHeld    bool            `gorm:"not null;default:false" json:"escrow_held"`
	Released      bool            `gorm:"not null;default:false" json:"released"`
	PaymentIntent string          `gorm:"type:varchar(200);index" json:"payment_intent"`
	CheckoutURL   string          `gorm:"type:text" json:"checkout_url,omitempty"`
	HeldAt        *time.Time      `json:"held_at"`
	ReleasedAt    *time.Time      `json:"released_at"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Job *Job `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"job,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
