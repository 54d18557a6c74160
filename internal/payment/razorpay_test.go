package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *RazorpayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRazorpayClient(srv.Client(), RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_secret",
		BaseURL:   srv.URL,
		Timeout:   timeout,
	})
}

func TestRazorpayClient_CreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_secret", pass)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 10040, body["amount"])
		assert.Equal(t, "INR", body["currency"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"order_123","entity":"order","amount":10040,"currency":"INR","receipt":"r1","status":"created","notes":[]}`)
	}, time.Second)

	order, err := client.CreateOrder(context.Background(), OrderParams{Amount: 10040, Currency: CurrencyINR, Receipt: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "order_123", order.ID)
	assert.Equal(t, int64(10040), order.Amount)
	assert.NotNil(t, order.Notes)
	assert.Empty(t, order.Notes)
}

func TestRazorpayClient_ErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist","reason":"input_validation_failed"}}`)
	}, time.Second)

	_, err := client.FetchPayment(context.Background(), "pay_missing")
	require.Error(t, err)

	gwErr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", gwErr.Detail.Code)
	assert.True(t, gwErr.Rejected())
	assert.False(t, gwErr.Retryable())
}

func TestRazorpayClient_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)

	_, err := client.CreateRefund(context.Background(), "pay_1", RefundParams{})
	require.Error(t, err)

	gwErr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.True(t, gwErr.Timeout())
	assert.True(t, gwErr.Retryable())
}

func TestRazorpayClient_ListRefundsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refunds", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("from"))
		assert.Equal(t, "200", r.URL.Query().Get("to"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		assert.Empty(t, r.URL.Query().Get("skip"))
		_, _ = io.WriteString(w, `{"entity":"collection","count":0}`)
	}, time.Second)

	out, err := client.ListRefunds(context.Background(), ListRefundsParams{From: 100, To: 200, Count: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.NotNil(t, out.Items)
}

func TestFakeGateway_RefundBookkeeping(t *testing.T) {
	g := NewFakeGateway("key", "secret")
	ctx := context.Background()

	order, err := g.CreateOrder(ctx, OrderParams{Amount: 50000, Currency: CurrencyINR})
	require.NoError(t, err)
	paymentID, sig := g.Capture(order.ID, "upi", "a@b.c")
	assert.True(t, VerifyOrder(order.ID, paymentID, sig, "secret"))

	r1, err := g.CreateRefund(ctx, paymentID, RefundParams{Amount: 20000})
	require.NoError(t, err)
	assert.Equal(t, int64(20000), r1.Amount)

	r2, err := g.CreateRefund(ctx, paymentID, RefundParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), r2.Amount)

	_, err = g.CreateRefund(ctx, paymentID, RefundParams{})
	gwErr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.True(t, gwErr.Rejected())
}
