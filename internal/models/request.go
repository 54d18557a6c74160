package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MinRequestAmount - минимальная цель сбора в minor units (1000 в основной валюте)
const MinRequestAmount int64 = 100_000

// Request - сбор средств с целью. AmountRaised/DonorsCount ведутся дельтами,
// на чтении не пересчитываются.
type Request struct {
	BaseModel
	UserID              *string            `gorm:"type:varchar(36);index" json:"userId,omitempty"`
	Title               string             `gorm:"type:varchar(200);not null" json:"title"`
	Description         string             `gorm:"type:text" json:"description"`
	Category            RequestCategory    `gorm:"type:varchar(20)" json:"category"`
	AmountNeeded        int64              `gorm:"not null" json:"amountNeeded"`
	AmountRaised        int64              `gorm:"not null;default:0" json:"amountRaised"`
	DonorsCount         int64              `gorm:"not null;default:0" json:"donorsCount"`
	Status              RequestStatus      `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	Urgency             RequestUrgency     `gorm:"type:varchar(20);not null;default:medium" json:"urgency"`
	VerificationStatus  VerificationStatus `gorm:"type:varchar(20);not null;default:unverified" json:"verificationStatus"`
	NeedsReconciliation bool               `gorm:"not null;default:false" json:"needsReconciliation"`
	ExpiresAt           *time.Time         `json:"expiresAt,omitempty"`
	Donations           []Donation         `gorm:"foreignKey:RequestID" json:"donations,omitempty"`
}

// ProgressPercentage = clamp(round(raised/needed*100), 0, 100)
func (r *Request) ProgressPercentage() int {
	if r.AmountNeeded <= 0 {
		return 0
	}
	pct := math.Round(float64(r.AmountRaised) / float64(r.AmountNeeded) * 100)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

func (r *Request) AmountNeededMajor() decimal.Decimal {
	return decimal.New(r.AmountNeeded, -2)
}

func (r *Request) AmountRaisedMajor() decimal.Decimal {
	return decimal.New(r.AmountRaised, -2)
}
