package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// OrderMessage - каноническое сообщение подтверждения заказа: "orderId|paymentId"
func OrderMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

// Sign считает HMAC-SHA256(secret, message) в нижнем hex
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подпись за постоянное время.
// Любой некорректный ввод дает false; функция никогда не паникует.
func Verify(message []byte, signature, secret string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if secret == "" || signature == "" {
		return false
	}

	// процессор присылает нижний hex; любой другой вид подписи считается подменой
	if len(signature) != hex.EncodedLen(sha256.Size) {
		return false
	}

	expected := Sign(message, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// VerifyOrder проверяет подпись, которую клиент получил от checkout
func VerifyOrder(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return Verify(OrderMessage(orderID, paymentID), signature, secret)
}

// VerifyWebhook работает с сырыми байтами тела: повторная сериализация JSON
// меняет порядок ключей и ломает подпись.
func VerifyWebhook(rawBody []byte, signature, secret string) bool {
	if len(rawBody) == 0 {
		return false
	}
	return Verify(rawBody, signature, secret)
}
