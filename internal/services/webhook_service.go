package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"helpinghands_backend/internal/cache"
	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WebhookService interface {
	// HandleEvent возвращает ошибку только при неверной подписи.
	// Все остальное логируется, при необходимости ставится в очередь сверки и подтверждается.
	HandleEvent(ctx context.Context, db *gorm.DB, rawBody []byte, signature, eventID string) error
}

type webhookService struct {
	ledger       LedgerService
	donationRepo repositories.DonationRepository
	webhookRepo  repositories.WebhookEventRepository
	queue        TaskQueue
	notify       notifier
	settings     PaymentSettings
}

func NewWebhookService(
	ledger LedgerService,
	donationRepo repositories.DonationRepository,
	webhookRepo repositories.WebhookEventRepository,
	queue TaskQueue,
	paymentCache cache.Cache,
	settings PaymentSettings,
) WebhookService {
	return &webhookService{
		ledger:       ledger,
		donationRepo: donationRepo,
		webhookRepo:  webhookRepo,
		queue:        queue,
		notify:       newNotifier(nil, paymentCache),
		settings:     settings.withDefaults(),
	}
}

func (s *webhookService) HandleEvent(ctx context.Context, db *gorm.DB, rawBody []byte, signature, eventID string) error {
	if !payment.VerifyWebhook(rawBody, signature, s.settings.WebhookSecret) {
		logger.CtxWarn(ctx, "Webhook signature mismatch", "size", len(rawBody))
		return apperrors.ErrInvalidWebhookSignature
	}

	if eventID == "" {
		sum := sha256.Sum256(rawBody)
		eventID = "body:" + hex.EncodeToString(sum[:16])
	}
	ctx = logger.WithWebhookEventID(ctx, eventID)

	evt, err := payment.ParseWebhook(rawBody)
	if err != nil {
		logger.CtxWarn(ctx, "Malformed webhook body acknowledged", "error", err.Error())
		return nil
	}

	record := &models.WebhookEvent{
		EventID: eventID,
		Event:   evt.Event,
		Payload: datatypes.JSON(rawBody),
	}
	if p, ok := evt.PaymentEntity(); ok {
		record.PaymentID = p.ID
	} else if r, ok := evt.RefundEntity(); ok {
		record.PaymentID = r.PaymentID
	}

	fresh, err := s.webhookRepo.Record(db.WithContext(ctx), record)
	if err != nil {
		// Журнал недоступен: обрабатываем все равно, запись в леджер идемпотентна
		logger.CtxWithError(ctx, "Failed to record webhook event", err, "event", evt.Event)
		record.ID = ""
	} else if !fresh {
		logger.CtxInfo(ctx, "Duplicate webhook delivery skipped", "event", evt.Event)
		return nil
	}

	procErr := s.dispatch(ctx, db, evt)
	if record.ID != "" {
		if err := s.webhookRepo.MarkProcessed(db.WithContext(ctx), record.ID, procErr); err != nil {
			logger.CtxWarn(ctx, "Failed to mark webhook processed", "error", err.Error())
		}
	}
	return nil
}

func (s *webhookService) dispatch(ctx context.Context, db *gorm.DB, evt *payment.WebhookEvent) error {
	switch evt.Event {
	case payment.EventPaymentCaptured:
		entity, ok := evt.PaymentEntity()
		if !ok {
			logger.CtxWarn(ctx, "payment.captured without payment entity")
			return nil
		}
		return s.onCaptured(ctx, db, entity)

	case payment.EventPaymentFailed:
		entity, ok := evt.PaymentEntity()
		if !ok {
			logger.CtxWarn(ctx, "payment.failed without payment entity")
			return nil
		}
		return s.onFailed(ctx, db, entity)

	case payment.EventRefundCreated:
		entity, ok := evt.RefundEntity()
		if !ok {
			logger.CtxWarn(ctx, "refund.created without refund entity")
			return nil
		}
		logger.CtxInfo(ctx, "Refund created",
			"refund_id", entity.ID,
			"payment_id", entity.PaymentID,
			"amount", entity.Amount,
		)
		s.notify.invalidate(ctx, entity.PaymentID)
		return nil

	default:
		logger.CtxInfo(ctx, "Unhandled webhook event", "event", evt.Event)
		return nil
	}
}

func (s *webhookService) onCaptured(ctx context.Context, db *gorm.DB, entity *payment.Payment) error {
	s.notify.invalidate(ctx, entity.ID)

	exists, err := s.donationRepo.ExistsByPaymentID(db.WithContext(ctx), entity.ID)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to check donation", err, "payment_id", entity.ID)
	}
	if exists {
		logger.CtxInfo(ctx, "Payment captured", "payment_id", entity.ID, "order_id", entity.OrderID, "amount", entity.Amount)
		return nil
	}

	donation, created, err := s.ledger.RecordCapturedPayment(ctx, db, entity)
	if err != nil {
		// Ошибки БД леджер уже поставил в очередь сам
		logger.CtxWarn(ctx, "Captured payment not recorded", "payment_id", entity.ID, "error", err.Error())
		return err
	}
	if created {
		logger.CtxInfo(ctx, "Donation recorded from webhook", logger.PaymentAttrs(donation.OrderID, donation.PaymentID, donation.TransactionID)...)
	}
	return nil
}

func (s *webhookService) onFailed(ctx context.Context, db *gorm.DB, entity *payment.Payment) error {
	logger.CtxWarn(ctx, "Payment failed",
		"payment_id", entity.ID,
		"order_id", entity.OrderID,
		"error_code", entity.ErrorCode,
		"error_description", entity.ErrorDescription,
	)

	_, err := s.ledger.ReverseDonation(ctx, db, entity.ID, models.DonationStatusFailed, nil)
	switch {
	case errors.Is(err, repositories.ErrDonationNotFound):
		logger.CtxInfo(ctx, "No donation for failed payment", "payment_id", entity.ID)
		return nil
	case err != nil:
		logger.CtxWithError(ctx, "Failed to mark donation failed", err, "payment_id", entity.ID)
		_ = s.queue.Enqueue(ctx, db, models.TaskPaymentFailed, entity.ID, ReversalTask{}, err)
		return err
	}
	return nil
}
