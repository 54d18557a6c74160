package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReconciliationTask - отложенный повтор локальной бухгалтерии после того,
// как деньги уже сдвинулись у процессора. Один активный таск на (kind, payment_id).
type ReconciliationTask struct {
	BaseModel
	Kind      TaskKind       `gorm:"type:varchar(32);not null;uniqueIndex:idx_reconciliation_kind_payment" json:"kind"`
	PaymentID string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_reconciliation_kind_payment" json:"paymentId"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	Status    TaskStatus     `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	Attempts  int            `gorm:"not null;default:0" json:"attempts"`
	NextRunAt time.Time      `gorm:"index" json:"nextRunAt"`
	LastError string         `gorm:"type:text" json:"lastError,omitempty"`
}
