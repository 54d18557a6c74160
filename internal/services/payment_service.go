package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"helpinghands_backend/internal/cache"
	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/pkg/apperrors"
)

const (
	defaultRefundsCount = 10
	maxRefundsCount     = 100
)

// PaymentService - чтение данных процессора (платежи, возвраты)
type PaymentService interface {
	GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
	ListRefunds(ctx context.Context, q *dto.ListRefundsQuery) (*dto.RefundListResponse, error)
}

type paymentService struct {
	gateway  payment.Gateway
	cache    cache.Cache
	settings PaymentSettings
}

func NewPaymentService(gateway payment.Gateway, c cache.Cache, settings PaymentSettings) PaymentService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &paymentService{gateway: gateway, cache: c, settings: settings.withDefaults()}
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, apperrors.ErrPaymentIDRequired
	}

	key := cache.PaymentKey(paymentID)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		logger.CtxWarn(ctx, "Payment cache read failed", "payment_id", paymentID, "error", err.Error())
	} else if ok {
		var p payment.Payment
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.settings.GatewayTimeout)
	defer cancel()

	p, err := s.gateway.FetchPayment(gwCtx, paymentID)
	if err != nil {
		if gwErr, ok := payment.AsGatewayError(err); ok && gwErr.StatusCode == 400 && gwErr.Detail.Code == "BAD_REQUEST_ERROR" {
			return nil, apperrors.NewNotFoundError("payment", "Payment not found")
		}
		logger.CtxWithError(ctx, "Failed to fetch payment", err, "payment_id", paymentID)
		return nil, gatewayError(err, false)
	}

	if data, err := json.Marshal(p); err == nil {
		if err := s.cache.Set(ctx, key, data, s.settings.CacheTTL); err != nil {
			logger.CtxWarn(ctx, "Payment cache write failed", "payment_id", paymentID, "error", err.Error())
		}
	}
	return p, nil
}

func (s *paymentService) ListRefunds(ctx context.Context, q *dto.ListRefundsQuery) (*dto.RefundListResponse, error) {
	params := payment.ListRefundsParams{Count: q.Count, Skip: q.Skip}
	if params.Count <= 0 {
		params.Count = defaultRefundsCount
	}
	if params.Count > maxRefundsCount {
		params.Count = maxRefundsCount
	}
	if params.Skip < 0 {
		params.Skip = 0
	}

	var err error
	if params.From, err = parseRefundTime(q.From, false); err != nil {
		return nil, apperrors.NewValidationMessage("refund", "Invalid 'from' date. Use RFC3339 or YYYY-MM-DD")
	}
	if params.To, err = parseRefundTime(q.To, true); err != nil {
		return nil, apperrors.NewValidationMessage("refund", "Invalid 'to' date. Use RFC3339 or YYYY-MM-DD")
	}
	if params.From > 0 && params.To > 0 && params.From > params.To {
		return nil, apperrors.NewValidationMessage("refund", "'from' cannot be after 'to'")
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.settings.GatewayTimeout)
	defer cancel()

	refunds, err := s.gateway.ListRefunds(gwCtx, params)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to list refunds", err)
		return nil, gatewayError(err, true)
	}

	return &dto.RefundListResponse{Count: refunds.Count, Data: refunds.Items}, nil
}

// parseRefundTime: RFC3339 или YYYY-MM-DD (UTC). Для верхней границы дата означает конец дня.
func parseRefundTime(raw string, endOfDay bool) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Unix(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return 0, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t.Unix(), nil
}
