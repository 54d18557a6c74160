package services

import (
	"helpinghands_backend/internal/cache"
	"helpinghands_backend/internal/email"
	"helpinghands_backend/internal/events"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/storage"
)

// Dependencies - внешние коллабораторы, которые собирает app
type Dependencies struct {
	Gateway        payment.Gateway
	Cache          cache.Cache
	Publisher      events.Publisher
	EmailProvider  email.Provider
	Templates      email.TemplateRenderer
	ReceiptArchive storage.Storage // может быть nil
	Payments       PaymentSettings
	Reconciliation ReconciliationSettings
}

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	OrderService          OrderService
	LedgerService         LedgerService
	PaymentService        PaymentService
	RefundService         RefundService
	WebhookService        WebhookService
	ReceiptService        ReceiptService
	ReconciliationService ReconciliationService
	RequestService        RequestService
	ResetService          ResetService
	TaskQueue             TaskQueue
}

func NewServiceContainer(deps Dependencies) *ServiceContainer {
	donationRepo := repositories.NewDonationRepository()
	requestRepo := repositories.NewRequestRepository()
	userRepo := repositories.NewUserRepository()
	orderRepo := repositories.NewPaymentOrderRepository()
	reconciliationRepo := repositories.NewReconciliationRepository()
	webhookRepo := repositories.NewWebhookEventRepository()

	if deps.Cache == nil {
		deps.Cache = cache.NopCache{}
	}

	queue := NewTaskQueue(reconciliationRepo)
	receipts := NewReceiptService(deps.EmailProvider, deps.Templates, deps.ReceiptArchive, donationRepo, queue)
	ledger := NewLedgerService(donationRepo, requestRepo, userRepo, orderRepo, reconciliationRepo, queue, receipts, deps.Publisher, deps.Cache, deps.Payments)

	return &ServiceContainer{
		OrderService:          NewOrderService(deps.Gateway, orderRepo, deps.Payments),
		LedgerService:         ledger,
		PaymentService:        NewPaymentService(deps.Gateway, deps.Cache, deps.Payments),
		RefundService:         NewRefundService(deps.Gateway, ledger, queue, deps.Payments),
		WebhookService:        NewWebhookService(ledger, donationRepo, webhookRepo, queue, deps.Cache, deps.Payments),
		ReceiptService:        receipts,
		ReconciliationService: NewReconciliationService(reconciliationRepo, donationRepo, requestRepo, userRepo, ledger, receipts, queue, deps.Reconciliation),
		RequestService:        NewRequestService(requestRepo),
		ResetService:          NewResetService(donationRepo, userRepo, requestRepo),
		TaskQueue:             queue,
	}
}
