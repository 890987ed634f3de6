package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is append-only.
type Message struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID         uuid.UUID `gorm:"type:uuid;index;not null" json:"job_id"`
	SenderID      uuid.UUID `gorm:"type:uuid;index;not null" json:"sender_id"`
	ReceiverID    uuid.UUID `gorm:"type:uuid;index;not null" json:"receiver_id"`
	Content       string    `gorm:"type:text" json:"content"`
	AttachmentURL string    `gorm:"type:text" json:"attachment_url,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`

	Job      *Job  `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
	Sender   *User `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"receiver,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
