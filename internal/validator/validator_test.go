package validator

import (
	"testing"

	"helpinghands_backend/internal/services/dto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validVerify() dto.VerifyPaymentRequest {
	return dto.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "sig",
		DonationData: dto.DonationData{
			Amount:        decimal.NewFromInt(100),
			Cause:         "medical",
			PaymentMethod: "upi",
			DonorName:     "Asha",
			DonorEmail:    "asha@test.com",
		},
	}
}

func TestValidate_VerifyRequest(t *testing.T) {
	v := New()

	ok := validVerify()
	require.NoError(t, v.Validate(&ok))

	tests := []struct {
		name   string
		mutate func(r *dto.VerifyPaymentRequest)
		field  string
		msg    string
	}{
		{"missing signature", func(r *dto.VerifyPaymentRequest) { r.Signature = "" }, "razorpay_signature", "This field is required"},
		{"bad cause", func(r *dto.VerifyPaymentRequest) { r.DonationData.Cause = "crypto" }, "cause", "Must be one of: medical, education, food, shelter, clothing, elderly, general"},
		{"bad method", func(r *dto.VerifyPaymentRequest) { r.DonationData.PaymentMethod = "cash" }, "paymentMethod", "Must be one of: card, upi, netbanking, wallet"},
		{"bad email", func(r *dto.VerifyPaymentRequest) { r.DonationData.DonorEmail = "nope" }, "donorEmail", "Must be a valid email address"},
		{"bad currency", func(r *dto.VerifyPaymentRequest) { r.DonationData.Currency = "EUR" }, "currency", "Must be one of: INR, USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validVerify()
			tt.mutate(&req)

			err := v.Validate(&req)
			require.Error(t, err)
			vErr, ok := err.(*ValidationError)
			require.True(t, ok)
			assert.Equal(t, tt.msg, vErr.Errors[tt.field])
		})
	}
}

func TestValidate_CurrencyCaseInsensitive(t *testing.T) {
	v := New()
	req := validVerify()
	req.DonationData.Currency = "usd"
	assert.NoError(t, v.Validate(&req))
}

func TestValidate_RefundQuery(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&dto.ListRefundsQuery{Count: 100}))
	assert.Error(t, v.Validate(&dto.ListRefundsQuery{Count: 101}))
	assert.Error(t, v.Validate(&dto.ListRefundsQuery{Skip: -1}))
}
