package app

import (
	"helpinghands_backend/internal/cache"
	"helpinghands_backend/internal/email"
	"helpinghands_backend/internal/events"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/services"
	"helpinghands_backend/internal/storage"
)

// Mocks - коллабораторы в памяти для тестов: fake-шлюз, кэш в памяти,
// письма и события только записываются.
type Mocks struct {
	Gateway *payment.FakeGateway
	Cache   *cache.MemoryCache
	Mail    *email.RecordingProvider
	Events  *events.RecordingPublisher
	Archive storage.Storage // nil - без архива
}

func NewMocks(keyID, keySecret string) *Mocks {
	return &Mocks{
		Gateway: payment.NewFakeGateway(keyID, keySecret),
		Cache:   cache.NewMemoryCache(),
		Mail:    &email.RecordingProvider{},
		Events:  &events.RecordingPublisher{},
	}
}

// Dependencies собирает services.Dependencies поверх моков
func (m *Mocks) Dependencies(payments services.PaymentSettings, reconciliation services.ReconciliationSettings) services.Dependencies {
	templates, err := email.NewDefaultTemplateManager("")
	if err != nil {
		panic(err)
	}
	return services.Dependencies{
		Gateway:        m.Gateway,
		Cache:          m.Cache,
		Publisher:      m.Events,
		EmailProvider:  m.Mail,
		Templates:      templates,
		ReceiptArchive: m.Archive,
		Payments:       payments,
		Reconciliation: reconciliation,
	}
}
