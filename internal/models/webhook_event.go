package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent - журнал принятых событий процессора.
// EventID (заголовок X-Razorpay-Event-Id) отсекает повторные доставки.
type WebhookEvent struct {
	BaseModel
	EventID     string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"eventId"`
	Event       string         `gorm:"type:varchar(64);not null;index" json:"event"`
	PaymentID   string         `gorm:"type:varchar(64);index" json:"paymentId,omitempty"`
	Payload     datatypes.JSON `json:"payload"`
	ProcessedAt *time.Time     `json:"processedAt,omitempty"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
}
