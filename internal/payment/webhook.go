package payment

import (
	"encoding/json"
	"fmt"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundCreated   = "refund.created"
)

// WebhookEvent - конверт события процессора
type WebhookEvent struct {
	Entity    string   `json:"entity"`
	AccountID string   `json:"account_id"`
	Event     string   `json:"event"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment *struct {
			Entity Payment `json:"entity"`
		} `json:"payment,omitempty"`
		Refund *struct {
			Entity Refund `json:"entity"`
		} `json:"refund,omitempty"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// PaymentEntity - платеж из payload, если он есть
func (e *WebhookEvent) PaymentEntity() (*Payment, bool) {
	if e.Payload.Payment == nil || e.Payload.Payment.Entity.ID == "" {
		return nil, false
	}
	return &e.Payload.Payment.Entity, true
}

// RefundEntity - возврат из payload, если он есть
func (e *WebhookEvent) RefundEntity() (*Refund, bool) {
	if e.Payload.Refund == nil || e.Payload.Refund.Entity.ID == "" {
		return nil, false
	}
	return &e.Payload.Refund.Entity, true
}

// ParseWebhook разбирает тело, подпись которого уже проверена
func ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if evt.Event == "" {
		return nil, fmt.Errorf("decode webhook: missing event name")
	}
	return &evt, nil
}
