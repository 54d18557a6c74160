package integration_test

import (
	"net/http"
	"testing"

	"helpinghands_backend/internal/models"
	"helpinghands_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdmin_RefundRequiresAdmin - возврат доступен только администратору
func TestAdmin_RefundRequiresAdmin(t *testing.T) {
	t.Parallel()

	// 1. Подготовка: записанное пожертвование
	ts := helpers.NewTestServer(t)
	request := helpers.CreateRequest(t, ts.DB, 1_000_000)
	orderID := createOrder(t, ts, 300)
	paymentID, signature := ts.Mocks.Gateway.Capture(orderID, "card", "")
	res, body := ts.SendRequest(t, "POST", "/api/v1/payments/verify", "", verifyBody(orderID, paymentID, signature, 300, request.ID))
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	refundBody := map[string]interface{}{"paymentId": paymentID}

	// 2. Без токена: 401
	res, _ = ts.SendRequest(t, "POST", "/api/v1/payments/refund", "", refundBody)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// 3. Обычный пользователь: 403
	userToken := ts.Token(t, "user-1", string(models.UserRoleUser))
	res, _ = ts.SendRequest(t, "POST", "/api/v1/payments/refund", userToken, refundBody)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Zero(t, ts.Mocks.Gateway.Calls("payments.refund"))

	// 4. Администратор: 200, пожертвование откатано
	adminToken := ts.Token(t, "admin-1", string(models.UserRoleAdmin))
	res, body = ts.SendRequest(t, "POST", "/api/v1/payments/refund", adminToken, refundBody)
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	var refund struct {
		ID        string `json:"id"`
		Amount    int64  `json:"amount"`
		PaymentID string `json:"payment_id"`
	}
	decodeData(t, body, &refund)
	assert.Equal(t, int64(30000), refund.Amount)
	assert.Equal(t, paymentID, refund.PaymentID)

	r := helpers.ReloadRequest(t, ts.DB, request.ID)
	assert.Zero(t, r.AmountRaised)
	assert.Zero(t, r.DonorsCount)
	t.Logf("ВОЗВРАТ: %s - Успешно.", refund.ID)

	// 5. Повторный полный возврат отклоняет процессор
	res, body = ts.SendRequest(t, "POST", "/api/v1/payments/refund", adminToken, refundBody)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, body, "fully refunded")

	// 6. Список возвратов
	res, body = ts.SendRequest(t, "GET", "/api/v1/payments/refunds?count=5", adminToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	var list struct {
		Count int `json:"count"`
	}
	decodeData(t, body, &list)
	assert.Equal(t, 1, list.Count)

	res, _ = ts.SendRequest(t, "GET", "/api/v1/payments/refunds/all?count=500", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestAdmin_ResetDonations(t *testing.T) {
	t.Parallel()
	ts := helpers.NewTestServer(t)
	request := helpers.CreateRequest(t, ts.DB, 1_000_000)

	orderID := createOrder(t, ts, 100)
	paymentID, signature := ts.Mocks.Gateway.Capture(orderID, "card", "")
	res, body := ts.SendRequest(t, "POST", "/api/v1/payments/verify", "", verifyBody(orderID, paymentID, signature, 100, request.ID))
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	userToken := ts.Token(t, "user-1", string(models.UserRoleUser))
	res, _ = ts.SendRequest(t, "POST", "/api/v1/admin/donations/reset", userToken, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	adminToken := ts.Token(t, "admin-1", string(models.UserRoleAdmin))
	res, body = ts.SendRequest(t, "POST", "/api/v1/admin/donations/reset", adminToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	var summary struct {
		DeletedDonations int64 `json:"deletedDonations"`
	}
	decodeData(t, body, &summary)
	assert.Equal(t, int64(1), summary.DeletedDonations)
	assert.Equal(t, int64(0), helpers.CountDonations(t, ts.DB))
	assert.Zero(t, helpers.ReloadRequest(t, ts.DB, request.ID).AmountRaised)
}

func TestAdmin_ReconciliationList(t *testing.T) {
	t.Parallel()
	ts := helpers.NewTestServer(t)
	ts.Mocks.Mail.FailWith(assert.AnError)

	orderID := createOrder(t, ts, 100)
	paymentID, signature := ts.Mocks.Gateway.Capture(orderID, "card", "")
	res, body := ts.SendRequest(t, "POST", "/api/v1/payments/verify", "", verifyBody(orderID, paymentID, signature, 100, ""))
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	adminToken := ts.Token(t, "admin-1", string(models.UserRoleAdmin))
	helpers.WaitFor(t, func() bool {
		_, body := ts.SendRequest(t, "GET", "/api/v1/admin/reconciliation?page=1&page_size=10", adminToken, nil)
		return decodeTotal(t, body) == 1
	})
}

func decodeTotal(t *testing.T, body string) int64 {
	var list struct {
		Total int64 `json:"total"`
	}
	decodeData(t, body, &list)
	return list.Total
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := helpers.NewTestServer(t)

	res, body := ts.SendRequest(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	res, _ = ts.SendRequest(t, "GET", "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
