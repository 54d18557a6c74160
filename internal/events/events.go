package events

import (
	"context"
	"sync"
	"time"

	"helpinghands_backend/internal/logger"
)

type EventType string

const (
	DonationCompleted EventType = "donation.completed"
	DonationRefunded  EventType = "donation.refunded"
	DonationFailed    EventType = "donation.failed"
)

// DonationEvent - сообщение о смене состояния пожертвования. Суммы в minor units.
type DonationEvent struct {
	Type          EventType `json:"type"`
	DonationID    string    `json:"donationId"`
	TransactionID string    `json:"transactionId"`
	PaymentID     string    `json:"paymentId"`
	OrderID       string    `json:"orderId"`
	RequestID     *string   `json:"requestId,omitempty"`
	UserID        *string   `json:"userId,omitempty"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Cause         string    `json:"cause"`
	RefundID      *string   `json:"refundId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher доставляет события после коммита. Ошибка публикации не откатывает бухгалтерию.
type Publisher interface {
	Publish(ctx context.Context, event DonationEvent) error
	Close() error
}

// LogPublisher используется, когда kafka не настроена
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event DonationEvent) error {
	logger.CtxInfo(ctx, "Donation event",
		"type", event.Type,
		"donation_id", event.DonationID,
		"payment_id", event.PaymentID,
		"amount", event.Amount,
	)
	return nil
}

func (LogPublisher) Close() error { return nil }

// RecordingPublisher запоминает события (тесты)
type RecordingPublisher struct {
	mu     sync.Mutex
	events []DonationEvent
	Err    error
}

func (p *RecordingPublisher) Publish(ctx context.Context, event DonationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

func (p *RecordingPublisher) Events() []DonationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DonationEvent(nil), p.events...)
}
