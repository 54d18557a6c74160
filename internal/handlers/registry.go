package handlers

import (
	"helpinghands_backend/internal/auth"
	"helpinghands_backend/internal/services"
	"helpinghands_backend/internal/validator"
)

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	PaymentHandler *PaymentHandler
	RequestHandler *RequestHandler
	AdminHandler   *AdminHandler
	HealthHandler  *HealthHandler
}

func NewAppHandlers(sc *services.ServiceContainer, v *validator.Validator, tokens *auth.TokenManager) *AppHandlers {
	base := NewBaseHandler(v)
	return &AppHandlers{
		PaymentHandler: NewPaymentHandler(base,
			sc.OrderService,
			sc.LedgerService,
			sc.PaymentService,
			sc.RefundService,
			sc.WebhookService,
			tokens,
		),
		RequestHandler: NewRequestHandler(base, sc.RequestService),
		AdminHandler:   NewAdminHandler(base, sc.ResetService, sc.ReconciliationService, tokens),
		HealthHandler:  NewHealthHandler(base),
	}
}
