package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Суммы в основной валюте уходят клиенту числом, а не строкой
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ---------- Create order ----------

type CreateOrderRequest struct {
	Amount   decimal.Decimal   `json:"amount"` // major units, проверяется по лимитам в сервисе
	Currency string            `json:"currency,omitempty" validate:"omitempty,is-currency"`
	Receipt  string            `json:"receipt,omitempty" validate:"omitempty,max=40"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type CreateOrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"` // minor units, как у процессора
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

// ---------- Verify ----------

type DonationData struct {
	Amount        decimal.Decimal `json:"amount"` // major units
	Currency      string          `json:"currency,omitempty" validate:"omitempty,is-currency"`
	Cause         string          `json:"cause" validate:"required,is-donation-cause"`
	PaymentMethod string          `json:"paymentMethod" validate:"required,is-payment-method"`
	DonorName     string          `json:"donorName" validate:"required,max=120"`
	DonorEmail    string          `json:"donorEmail" validate:"required,email,max=255"`
	RequestID     *string         `json:"requestId,omitempty" validate:"omitempty,max=36"`
	IsMonthly     bool            `json:"isMonthly"`
	Notes         string          `json:"notes,omitempty" validate:"max=500"`
	PaymentInfo   json.RawMessage `json:"paymentInfo,omitempty" swaggertype:"object"`
}

type VerifyPaymentRequest struct {
	OrderID      string       `json:"razorpay_order_id" validate:"required"`
	PaymentID    string       `json:"razorpay_payment_id" validate:"required"`
	Signature    string       `json:"razorpay_signature" validate:"required"`
	DonationData DonationData `json:"donationData"`
}

type DonationSummary struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"number"` // major units
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	ReceiptSent   bool            `json:"receiptSent"`
}

type VerifyPaymentResponse struct {
	Donation DonationSummary `json:"donation"`
}

// ---------- Failure ----------

type PaymentFailureRequest struct {
	OrderID string          `json:"razorpay_order_id"`
	Error   json.RawMessage `json:"error,omitempty" swaggertype:"object"`
}

// ---------- Refund ----------

type RefundRequest struct {
	PaymentID string            `json:"paymentId" validate:"required,max=64"`
	Amount    *decimal.Decimal  `json:"amount,omitempty"` // major units; nil = полный возврат
	Notes     map[string]string `json:"notes,omitempty"`
}

type ListRefundsQuery struct {
	From  string `form:"from"`
	To    string `form:"to"`
	Count int    `form:"count" validate:"omitempty,min=1,max=100"`
	Skip  int    `form:"skip" validate:"omitempty,min=0"`
}

type RefundListResponse struct {
	Count int         `json:"count"`
	Data  interface{} `json:"data"`
}

// ---------- Request progress ----------

type RequestProgressResponse struct {
	RequestID           string          `json:"requestId"`
	AmountNeeded        decimal.Decimal `json:"amountNeeded" swaggertype:"number"`
	AmountRaised        decimal.Decimal `json:"amountRaised" swaggertype:"number"`
	DonorsCount         int64           `json:"donorsCount"`
	ProgressPercentage  int             `json:"progressPercentage"`
	NeedsReconciliation bool            `json:"needsReconciliation"`
}

// ---------- Admin ----------

type ResetSummary struct {
	DeletedDonations int64 `json:"deletedDonations"`
	ResetUsers       int64 `json:"resetUsers"`
	ResetRequests    int64 `json:"resetRequests"`
}

type ReconciliationTaskResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	PaymentID string    `json:"paymentId"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	NextRunAt time.Time `json:"nextRunAt"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ReconciliationListResponse struct {
	Tasks    []ReconciliationTaskResponse `json:"tasks"`
	Total    int64                        `json:"total"`
	Page     int                          `json:"page"`
	PageSize int                          `json:"pageSize"`
}

// ---------- Envelope ----------

// Response - общий конверт ответа {success, message, data}
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
