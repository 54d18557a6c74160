package services

import (
	"context"
	"time"

	"helpinghands_backend/internal/cache"
	"helpinghands_backend/internal/events"
	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/models"
)

// notifier - побочные эффекты после коммита: событие и инвалидация кэша.
// Ошибки здесь не откатывают и не ломают основную операцию.
type notifier struct {
	publisher events.Publisher
	cache     cache.Cache
}

func newNotifier(publisher events.Publisher, c cache.Cache) notifier {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	if c == nil {
		c = cache.NopCache{}
	}
	return notifier{publisher: publisher, cache: c}
}

func (n notifier) donationChanged(ctx context.Context, eventType events.EventType, d *models.Donation) {
	n.invalidate(ctx, d.PaymentID)

	evt := events.DonationEvent{
		Type:          eventType,
		DonationID:    d.ID,
		TransactionID: d.TransactionID,
		PaymentID:     d.PaymentID,
		OrderID:       d.OrderID,
		RequestID:     d.RequestID,
		UserID:        d.UserID,
		Amount:        d.Amount,
		Currency:      d.Currency,
		Cause:         string(d.Cause),
		RefundID:      d.RefundID,
		OccurredAt:    time.Now().UTC(),
	}
	if err := n.publisher.Publish(ctx, evt); err != nil {
		logger.CtxWithError(ctx, "Failed to publish donation event", err,
			"type", eventType,
			"payment_id", d.PaymentID,
		)
	}
}

func (n notifier) invalidate(ctx context.Context, paymentID string) {
	if paymentID == "" {
		return
	}
	if err := n.cache.Delete(ctx, cache.PaymentKey(paymentID)); err != nil {
		logger.CtxWarn(ctx, "Failed to invalidate payment cache", "payment_id", paymentID, "error", err.Error())
	}
}
