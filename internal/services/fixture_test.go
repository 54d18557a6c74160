package services_test

import (
	"context"
	"testing"
	"time"

	"helpinghands_backend/internal/app"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/services"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/test/helpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	ctx   context.Context
	db    *gorm.DB
	mocks *app.Mocks
	sc    *services.ServiceContainer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := helpers.NewTestDB(t)
	mocks := app.NewMocks(helpers.TestKeyID, helpers.TestKeySecret)
	sc := services.NewServiceContainer(mocks.Dependencies(
		services.PaymentSettings{
			KeySecret:     helpers.TestKeySecret,
			WebhookSecret: helpers.TestWebhookSecret,
		},
		services.ReconciliationSettings{
			BaseBackoff: time.Millisecond,
			MaxBackoff:  time.Millisecond,
			MaxAttempts: 3,
		},
	))
	return &fixture{ctx: context.Background(), db: db, mocks: mocks, sc: sc}
}

// checkout создает заказ через сервис и "оплачивает" его в fake-шлюзе
func (f *fixture) checkout(t *testing.T, amount int64) (orderID, paymentID, signature string) {
	t.Helper()
	return f.checkoutAs(t, &dto.CreateOrderRequest{Amount: decimal.NewFromInt(amount)}, nil)
}

// checkoutAs - то же, но с заметками заказа и пользователем из токена
func (f *fixture) checkoutAs(t *testing.T, req *dto.CreateOrderRequest, userID *string) (orderID, paymentID, signature string) {
	t.Helper()
	order, err := f.sc.OrderService.CreateOrder(f.ctx, f.db, req, userID)
	require.NoError(t, err)
	paymentID, signature = f.mocks.Gateway.Capture(order.OrderID, "upi", "donor@test.com")
	return order.OrderID, paymentID, signature
}

func (f *fixture) verifyRequest(orderID, paymentID, signature string, amount int64, requestID *string) *dto.VerifyPaymentRequest {
	return &dto.VerifyPaymentRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signature,
		DonationData: dto.DonationData{
			Amount:        decimal.NewFromInt(amount),
			Cause:         string(models.CauseMedical),
			PaymentMethod: string(models.PaymentMethodUPI),
			DonorName:     "Asha",
			DonorEmail:    "asha@test.com",
			RequestID:     requestID,
		},
	}
}

func (f *fixture) donation(t *testing.T, paymentID string) *models.Donation {
	t.Helper()
	var d models.Donation
	require.NoError(t, f.db.Where("payment_id = ?", paymentID).First(&d).Error)
	return &d
}

func signedOrder(orderID, paymentID string) string {
	return payment.Sign(payment.OrderMessage(orderID, paymentID), helpers.TestKeySecret)
}
