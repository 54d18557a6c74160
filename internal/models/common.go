package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel - id генерируется на стороне приложения, чтобы одинаково работать
// на postgres, mysql и sqlite (тесты).
type BaseModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// AllModels - порядок важен для AutoMigrate (requests/users до donations)
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Request{},
		&Donation{},
		&PaymentOrder{},
		&ReconciliationTask{},
		&WebhookEvent{},
	}
}
