package models

import "gorm.io/datatypes"

// PaymentOrder - локальная копия заказа, выданного процессором.
// Notes нужны вебхуку, чтобы записать пожертвование, если клиент так и не вызвал /verify.
// UserID ставит сервер по токену; notes клиента на пользователя не влияют.
type PaymentOrder struct {
	BaseModel
	OrderID  string             `gorm:"type:varchar(64);uniqueIndex;not null" json:"orderId"`
	UserID   *string            `gorm:"type:varchar(36);index" json:"userId,omitempty"`
	Amount   int64              `gorm:"not null" json:"amount"` // minor units
	Currency string             `gorm:"type:varchar(3);not null" json:"currency"`
	Receipt  string             `gorm:"type:varchar(64)" json:"receipt"`
	Notes    datatypes.JSON     `json:"notes,omitempty"`
	Status   PaymentOrderStatus `gorm:"type:varchar(20);not null;default:created" json:"status"`
}
