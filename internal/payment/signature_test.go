package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	// HMAC-SHA256("secret", "order_1|pay_1")
	sig := Sign(OrderMessage("order_1", "pay_1"), "secret")
	assert.Len(t, sig, 64)
	assert.Equal(t, strings.ToLower(sig), sig)
	assert.True(t, VerifyOrder("order_1", "pay_1", sig, "secret"))
}

func TestVerifyOrder_RejectsTampering(t *testing.T) {
	const secret = "s3cr3t"
	sig := Sign(OrderMessage("order_A", "pay_B"), secret)

	cases := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		secret    string
	}{
		{"wrong order", "order_X", "pay_B", sig, secret},
		{"wrong payment", "order_A", "pay_X", sig, secret},
		{"wrong secret", "order_A", "pay_B", sig, "other"},
		{"empty secret", "order_A", "pay_B", sig, ""},
		{"empty signature", "order_A", "pay_B", "", secret},
		{"uppercase hex", "order_A", "pay_B", strings.ToUpper(sig), secret},
		{"truncated", "order_A", "pay_B", sig[:63], secret},
		{"not hex", "order_A", "pay_B", strings.Repeat("z", 64), secret},
		{"empty order", "", "pay_B", sig, secret},
		{"empty payment", "order_A", "", sig, secret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, VerifyOrder(tc.orderID, tc.paymentID, tc.signature, tc.secret))
		})
	}
}

func TestVerify_SignRoundTripForArbitraryMessages(t *testing.T) {
	messages := []string{"", "a", "order|pay", strings.Repeat("x", 4096), "юникод|✓"}
	for _, m := range messages {
		sig := Sign([]byte(m), "k")
		assert.True(t, Verify([]byte(m), sig, "k"), "message %q", m)

		// любой измененный символ подписи ломает проверку
		flipped := []byte(sig)
		if flipped[0] == 'a' {
			flipped[0] = 'b'
		} else {
			flipped[0] = 'a'
		}
		assert.False(t, Verify([]byte(m), string(flipped), "k"))
	}
}

func TestVerifyWebhook_UsesRawBytes(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"b":1,"a":2}}`)
	sig := Sign(body, "whsec")

	assert.True(t, VerifyWebhook(body, sig, "whsec"))
	// тот же JSON с другим порядком ключей - другая подпись
	reordered := []byte(`{"event":"payment.captured","payload":{"a":2,"b":1}}`)
	assert.False(t, VerifyWebhook(reordered, sig, "whsec"))
	assert.False(t, VerifyWebhook(nil, sig, "whsec"))
}
