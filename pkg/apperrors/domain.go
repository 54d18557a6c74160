package apperrors

import "net/http"

// ErrConflict - дубликат. Для платежей не доходит до клиента: леджер возвращает существующую запись.
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// ErrInvalidStatus - недопустимый переход статуса
func ErrInvalidStatus(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusConflict)
}

// =======================
// Платежи
// =======================

var ErrInvalidPaymentSignature = New(
	CodeInvalidSignature,
	"payment",
	"Invalid payment signature",
	http.StatusBadRequest,
)

var ErrInvalidWebhookSignature = New(
	CodeInvalidSignature,
	"webhook",
	"Invalid webhook signature",
	http.StatusBadRequest,
)

var ErrInvalidCurrency = New(
	CodeValidationFailed,
	"payment",
	"Invalid currency",
	http.StatusBadRequest,
)

var ErrPaymentIDRequired = New(
	CodeValidationFailed,
	"refund",
	"Payment ID is required",
	http.StatusBadRequest,
)

var ErrDonationNotFound = New(
	CodeNotFound,
	"donation",
	"Donation not found",
	http.StatusNotFound,
)

var ErrRequestNotFound = New(
	CodeNotFound,
	"request",
	"Request not found",
	http.StatusNotFound,
)

// GatewayError - процессор недоступен или отклонил операцию.
// Текст процессора остается в Err/Details и не показывается анонимным клиентам.
func GatewayError(err error, details interface{}) *AppError {
	return Wrap(err, CodeExternalServiceError, "gateway", "Payment processing failed. Please try again.", http.StatusBadGateway).
		WithDetails(details)
}

// GatewayTimeout - истек таймаут вызова процессора; локальное состояние не менялось
func GatewayTimeout(err error) *AppError {
	return Wrap(err, CodeGatewayTimeout, "gateway", "Payment gateway timed out. Please retry.", http.StatusGatewayTimeout)
}

// IsGatewayError - true для любых ошибок шлюза, включая таймаут
func IsGatewayError(err error) bool {
	return HasCode(err, CodeExternalServiceError) || HasCode(err, CodeGatewayTimeout)
}

// GatewayRejected - процессор отклонил операцию по бизнес-причине (уже возвращен, сумма больше захваченной).
// Используется на привилегированных маршрутах, поэтому описание процессора остается в Details.
func GatewayRejected(err error, message string, details interface{}) *AppError {
	return Wrap(err, CodeExternalServiceError, "gateway", message, http.StatusUnprocessableEntity).
		WithDetails(details)
}
