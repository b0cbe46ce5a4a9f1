package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is immutable once created; only its recipient rows change state.
type Notification struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Body         string    `gorm:"type:text;not null" json:"body"`
	SenderUserID uuid.UUID `gorm:"type:char(36);not null;index" json:"sender_user_id"`
	CreatedAt    time.Time `json:"created_at"`

	Recipients []NotificationRecipient `gorm:"foreignKey:NotificationID" json:"recipients,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// NotificationRecipient tracks delivery state for one (notification, recipient)
// pair. DeliveryStatus only ever moves PENDING -> DELIVERED -> READ.
type NotificationRecipient struct {
	NotificationID  uuid.UUID  `gorm:"type:char(36);primaryKey" json:"notification_id"`
	RecipientUserID uuid.UUID  `gorm:"type:char(36);primaryKey;index" json:"recipient_user_id"`
	DeliveryStatus  string     `gorm:"size:20;not null;index" json:"delivery_status"` // PENDING | DELIVERED | READ
	DeliveredAt     *time.Time `json:"delivered_at"`
	ReadAt          *time.Time `json:"read_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (NotificationRecipient) TableName() string {
	return "notification_recipients"
}
