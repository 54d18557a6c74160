package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const MaxDonationNotesLength = 500

// Donation - источник истины; агрегаты Request/User являются его проекциями.
// PaymentID - ключ идемпотентности: уникальный индекс работает как замок "первый писатель выигрывает".
type Donation struct {
	BaseModel
	UserID             *string        `gorm:"type:varchar(36);index" json:"userId,omitempty"`
	RequestID          *string        `gorm:"type:varchar(36);index" json:"requestId,omitempty"`
	// requestId из checkout, которого не нашлось; ждет ручной сверки
	UnmatchedRequestID *string        `gorm:"type:varchar(36);index" json:"unmatchedRequestId,omitempty"`
	Amount             int64          `gorm:"not null" json:"amount"` // minor units
	Currency           string         `gorm:"type:varchar(3);not null" json:"currency"`
	Cause              DonationCause  `gorm:"type:varchar(20);not null" json:"cause"`
	PaymentMethod      PaymentMethod  `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	PaymentInfo        datatypes.JSON `json:"paymentInfo,omitempty"`
	TransactionID      string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"transactionId"`
	OrderID            string         `gorm:"type:varchar(64);index" json:"orderId"`
	PaymentID          string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"paymentId"`
	Signature          string         `gorm:"type:varchar(128)" json:"-"`
	Status             DonationStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Source             DonationSource `gorm:"type:varchar(20)" json:"source"`
	IsMonthly          bool           `json:"isMonthly"`
	DonorName          string         `gorm:"type:varchar(120);not null" json:"donorName"`
	DonorEmail         string         `gorm:"type:varchar(255);not null" json:"donorEmail"`
	ReceiptSent        bool           `gorm:"not null;default:false" json:"receiptSent"`
	ReceiptURL         *string        `gorm:"type:varchar(512)" json:"receiptUrl,omitempty"`
	Notes              string         `gorm:"type:varchar(500)" json:"notes,omitempty"`
	RefundID           *string        `gorm:"type:varchar(64)" json:"refundId,omitempty"`
}

// AmountMajor - сумма в рупиях/долларах
func (d *Donation) AmountMajor() decimal.Decimal {
	return decimal.New(d.Amount, -2)
}

func (d *Donation) IsAnonymous() bool {
	return d.UserID == nil || *d.UserID == ""
}
