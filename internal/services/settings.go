package services

import (
	"time"

	"helpinghands_backend/internal/payment"
)

// PaymentSettings - параметры платежей из конфигурации. Секреты не покидают сервер.
type PaymentSettings struct {
	KeySecret       string
	WebhookSecret   string
	Limits          payment.Limits
	DefaultCurrency payment.Currency
	GatewayTimeout  time.Duration
	CacheTTL        time.Duration
}

func (s PaymentSettings) withDefaults() PaymentSettings {
	if s.Limits.Min.IsZero() && s.Limits.Max.IsZero() {
		s.Limits = payment.DefaultLimits()
	}
	if s.DefaultCurrency == "" {
		s.DefaultCurrency = payment.CurrencyINR
	}
	if s.GatewayTimeout <= 0 {
		s.GatewayTimeout = 15 * time.Second
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = time.Minute
	}
	return s
}
