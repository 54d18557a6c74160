package services

import (
	"context"
	"errors"
	"strings"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type RefundService interface {
	// Refund: сначала процессор, потом локальный откат. Отказ процессора ничего не меняет локально.
	Refund(ctx context.Context, db *gorm.DB, req *dto.RefundRequest) (*payment.Refund, error)
}

type refundService struct {
	gateway  payment.Gateway
	ledger   LedgerService
	queue    TaskQueue
	settings PaymentSettings
}

func NewRefundService(gateway payment.Gateway, ledger LedgerService, queue TaskQueue, settings PaymentSettings) RefundService {
	return &refundService{
		gateway:  gateway,
		ledger:   ledger,
		queue:    queue,
		settings: settings.withDefaults(),
	}
}

func (s *refundService) Refund(ctx context.Context, db *gorm.DB, req *dto.RefundRequest) (*payment.Refund, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return nil, apperrors.ErrPaymentIDRequired
	}

	params := payment.RefundParams{Notes: payment.Notes(req.Notes)}
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, apperrors.NewValidationMessage("refund", "Refund amount must be greater than zero")
		}
		params.Amount = payment.ToMinor(*req.Amount)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.settings.GatewayTimeout)
	defer cancel()

	refund, err := s.gateway.CreateRefund(gwCtx, paymentID, params)
	if err != nil {
		logger.CtxWithError(ctx, "Refund rejected by gateway", err, "payment_id", paymentID)
		return nil, gatewayError(err, true)
	}

	logger.CtxInfo(ctx, "Refund created",
		"payment_id", paymentID,
		"refund_id", refund.ID,
		"amount", refund.Amount,
	)

	// Частичный возврат все равно откатывает пожертвование целиком
	refundID := refund.ID
	_, err = s.ledger.ReverseDonation(ctx, db, paymentID, models.DonationStatusRefunded, &refundID)
	switch {
	case errors.Is(err, repositories.ErrDonationNotFound):
		// Запись может прийти позже (verify, вебхук, очередь): таск ее пометит как refunded
		logger.CtxWarn(ctx, "Refund before donation recorded, remembered for later", "payment_id", paymentID, "refund_id", refund.ID)
		_ = s.queue.Enqueue(ctx, db, models.TaskRefund, paymentID, ReversalTask{RefundID: &refundID}, err)
	case err != nil:
		logger.CtxWithError(ctx, "Failed to reverse refunded donation", err, "payment_id", paymentID, "refund_id", refund.ID)
		_ = s.queue.Enqueue(ctx, db, models.TaskRefund, paymentID, ReversalTask{RefundID: &refundID}, err)
	}

	return refund, nil
}
