package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is unique per (job, freelancer). The partial index keeps a second
// accepted proposal on the same job out of the table even if two accepts race.
type Proposal struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	JobID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_proposal_job_freelancer;uniqueIndex:idx_proposal_one_accepted,where:status = 'accepted'" json:"job_id"`
	FreelancerID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_proposal_job_freelancer;index" json:"freelancer_id"`
	CoverLetter   string          `gorm:"type:text;not null" json:"cover_letter"`
	BidAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"bid_amount"`
	TimeframeDays int             `gorm:"not null;default:7" json:"timeframe_days"`
	Status        ProposalStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Job        *Job  `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"job,omitempty"`
	Freelancer *User `gorm:"foreignKey:FreelancerID;constraint:OnDelete:CASCADE" json:"freelancer,omitempty"`
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
