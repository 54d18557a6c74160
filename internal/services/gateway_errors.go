package services

import (
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/pkg/apperrors"
)

// gatewayError переводит ошибку процессора в AppError.
// exposeRejection=true только для админских маршрутов: там описание процессора полезно.
func gatewayError(err error, exposeRejection bool) error {
	gwErr, ok := payment.AsGatewayError(err)
	if !ok {
		return apperrors.GatewayError(err, nil)
	}
	if gwErr.Timeout() {
		return apperrors.GatewayTimeout(err)
	}
	if exposeRejection && gwErr.Rejected() {
		message := gwErr.Detail.Description
		if message == "" {
			message = "Payment gateway rejected the request"
		}
		return apperrors.GatewayRejected(err, message, gwErr.Detail)
	}
	return apperrors.GatewayError(err, nil)
}
