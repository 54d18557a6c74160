package services

import (
	"context"
	"encoding/json"
	"time"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderService interface {
	// CreateOrder: actingUserID - из токена, nil для анонимного донора
	CreateOrder(ctx context.Context, db *gorm.DB, req *dto.CreateOrderRequest, actingUserID *string) (*dto.CreateOrderResponse, error)
	// RecordFailure - клиент сообщил о неудачной оплате. Только журнал, состояние не меняется.
	RecordFailure(ctx context.Context, req *dto.PaymentFailureRequest)
}

type orderService struct {
	gateway   payment.Gateway
	orderRepo repositories.PaymentOrderRepository
	settings  PaymentSettings
	now       func() time.Time
}

func NewOrderService(gateway payment.Gateway, orderRepo repositories.PaymentOrderRepository, settings PaymentSettings) OrderService {
	return &orderService{
		gateway:   gateway,
		orderRepo: orderRepo,
		settings:  settings.withDefaults(),
		now:       time.Now,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, db *gorm.DB, req *dto.CreateOrderRequest, actingUserID *string) (*dto.CreateOrderResponse, error) {
	// Все проверки до обращения к процессору
	if err := s.settings.Limits.Validate(req.Amount); err != nil {
		return nil, apperrors.NewValidationMessage("payment", err.Error())
	}

	currency := s.settings.DefaultCurrency
	if req.Currency != "" {
		c, err := payment.NormalizeCurrency(req.Currency)
		if err != nil {
			return nil, apperrors.ErrInvalidCurrency.WithDetails(err.Error())
		}
		currency = c
	}

	receipt := req.Receipt
	if receipt == "" {
		receipt = payment.NewReceiptID(s.now())
	}

	notes := payment.Notes{}
	for k, v := range req.Notes {
		if k == "userId" {
			logger.CtxWarn(ctx, "Client supplied userId note ignored", "receipt", receipt)
			continue
		}
		notes[k] = v
	}

	params := payment.OrderParams{
		Amount:   payment.ToMinor(req.Amount),
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.settings.GatewayTimeout)
	defer cancel()

	order, err := s.gateway.CreateOrder(gwCtx, params)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to create payment order", err, "amount", params.Amount, "receipt", receipt)
		return nil, gatewayError(err, false)
	}

	// Заказ уже выдан процессором: ошибка локальной записи не ломает ответ
	rawNotes, _ := json.Marshal(params.Notes)
	local := &models.PaymentOrder{
		OrderID:  order.ID,
		UserID:   nonEmpty(actingUserID),
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		Notes:    datatypes.JSON(rawNotes),
		Status:   models.PaymentOrderCreated,
	}
	if err := s.orderRepo.Create(db.WithContext(ctx), local); err != nil {
		logger.CtxWithError(ctx, "Failed to persist payment order", err, "order_id", order.ID)
	}

	logger.CtxInfo(ctx, "Payment order created", "order_id", order.ID, "amount", order.Amount, "currency", order.Currency)

	return &dto.CreateOrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

func (s *orderService) RecordFailure(ctx context.Context, req *dto.PaymentFailureRequest) {
	logger.CtxWarn(ctx, "Payment failed on client",
		"order_id", req.OrderID,
		"error", string(req.Error),
	)
}
