package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"helpinghands_backend/internal/handlers"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capturedEvent(t *testing.T, p payment.Payment) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"entity":  "event",
		"event":   payment.EventPaymentCaptured,
		"payload": map[string]interface{}{"payment": map[string]interface{}{"entity": p}},
	})
	require.NoError(t, err)
	return body
}

func webhookHeaders(body []byte, secret, eventID string) map[string]string {
	return map[string]string{
		handlers.HeaderWebhookSignature: payment.Sign(body, secret),
		handlers.HeaderWebhookEventID:   eventID,
	}
}

// TestWebhook_SignatureOverRawBody - подпись проверяется по байтам тела, а не по переразобранному JSON
func TestWebhook_SignatureOverRawBody(t *testing.T) {
	t.Parallel()
	ts := helpers.NewTestServer(t)

	// 1. Неверная подпись: 400
	body := capturedEvent(t, payment.Payment{ID: "pay_sig", Amount: 10000, Currency: "INR"})
	res, resBody := ts.SendRequest(t, "POST", "/api/v1/payments/webhook", "", body, webhookHeaders(body, "wrong", "evt_1"))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, resBody, "Invalid webhook signature")

	// 2. Без заголовка подписи: 400
	res, _ = ts.SendRequest(t, "POST", "/api/v1/payments/webhook", "", body)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// 3. Те же данные с другими пробелами: подпись не сходится
	spaced := append([]byte(" "), body...)
	res, _ = ts.SendRequest(t, "POST", "/api/v1/payments/webhook", "", spaced, webhookHeaders(body, helpers.TestWebhookSecret, "evt_2"))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, int64(0), helpers.CountDonations(t, ts.DB))

	// 4. Правильная подпись: 200 и запись пожертвования
	res, resBody = ts.SendRequest(t, "POST", "/api/v1/payments/webhook", "", body, webhookHeaders(body, helpers.TestWebhookSecret, "evt_3"))
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)
	assert.True(t, decode(t, resBody).Success)
	assert.Equal(t, int64(1), helpers.CountDonations(t, ts.DB))
}

func TestWebhook_VerifyAndWebhookRecordOnce(t *testing.T) {
	t.Parallel()
	ts := helpers.NewTestServer(t)
	request := helpers.CreateRequest(t, ts.DB, 1_000_000)

	orderID := createOrder(t, ts, 250)
	paymentID, signature := ts.Mocks.Gateway.Capture(orderID, "upi", "")

	body := capturedEvent(t, payment.Payment{ID: paymentID, OrderID: orderID, Amount: 25000, Currency: "INR", Method: "upi"})
	res, _ := ts.SendRequest(t, "POST", "/api/v1/payments/webhook", "", body, webhookHeaders(body, helpers.TestWebhookSecret, "evt_race"))
	require.Equal(t, http.StatusOK, res.StatusCode)

	// клиент подтверждает уже после вебхука
	res, resBody := ts.SendRequest(t, "POST", "/api/v1/payments/verify", "", verifyBody(orderID, paymentID, signature, 250, request.ID))
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)

	assert.Equal(t, int64(1), helpers.CountDonations(t, ts.DB))
	var d models.Donation
	require.NoError(t, ts.DB.Where("payment_id = ?", paymentID).First(&d).Error)
	assert.Equal(t, models.DonationSourceWebhook, d.Source)
	// вебхук пришел без requestId в notes заказа, сбор не затронут
	assert.Zero(t, helpers.ReloadRequest(t, ts.DB, request.ID).AmountRaised)
}

func TestWebhook_UnknownEventAcknowledged(t *testing.T) {
	t.Parallel()
	ts := helpers.NewTestServer(t)

	body := []byte(`{"entity":"event","event":"subscription.charged","payload":{}}`)
	res, _ := ts.SendRequest(t, "POST", "/api/v1/payments/webhook", "", body, webhookHeaders(body, helpers.TestWebhookSecret, "evt_unknown"))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var evt models.WebhookEvent
	require.NoError(t, ts.DB.Where("event_id = ?", "evt_unknown").First(&evt).Error)
	assert.Equal(t, "subscription.charged", evt.Event)
}
