package payment

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strconv"
	"time"
)

var txnEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewTransactionID: "TXN" + unix millis + 16 символов base32 из crypto/rand (80 бит).
// Вероятность коллизии внутри одной миллисекунды пренебрежимо мала.
func NewTransactionID(now time.Time) (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate transaction id: %w", err)
	}
	return "TXN" + strconv.FormatInt(now.UnixMilli(), 10) + txnEncoding.EncodeToString(buf), nil
}

// NewReceiptID - квитанция заказа по умолчанию
func NewReceiptID(now time.Time) string {
	return "receipt_" + strconv.FormatInt(now.UnixMilli(), 10)
}
