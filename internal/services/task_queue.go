package services

import (
	"context"
	"encoding/json"
	"time"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/repositories"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskQueue ставит в очередь повтор локальной бухгалтерии, когда у процессора
// деньги уже сдвинулись, а у нас запись не удалась.
type TaskQueue interface {
	Enqueue(ctx context.Context, db *gorm.DB, kind models.TaskKind, paymentID string, payload interface{}, cause error) error
}

type taskQueue struct {
	repo repositories.ReconciliationRepository
}

func NewTaskQueue(repo repositories.ReconciliationRepository) TaskQueue {
	return &taskQueue{repo: repo}
}

func (q *taskQueue) Enqueue(ctx context.Context, db *gorm.DB, kind models.TaskKind, paymentID string, payload interface{}, cause error) error {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to encode reconciliation payload", err, "kind", kind, "payment_id", paymentID)
		return err
	}

	task := &models.ReconciliationTask{
		Kind:      kind,
		PaymentID: paymentID,
		Payload:   datatypes.JSON(data),
		Status:    models.TaskStatusPending,
		NextRunAt: time.Now(),
	}
	if cause != nil {
		task.LastError = cause.Error()
	}

	// Отдельная сессия: транзакция вызывающего к этому моменту уже откатана
	if err := q.repo.Enqueue(db.WithContext(context.WithoutCancel(ctx)), task); err != nil {
		// Последний рубеж: запись в лог с полным payload для ручной сверки
		logger.CtxError(ctx, "Failed to enqueue reconciliation task",
			"kind", kind,
			"payment_id", paymentID,
			"payload", string(data),
			"error", err.Error(),
		)
		return err
	}

	logger.CtxWarn(ctx, "Reconciliation task enqueued", "kind", kind, "payment_id", paymentID)
	return nil
}

// RecordTask - payload для TaskRecordDonation
type RecordTask struct {
	OrderID   string                `json:"orderId"`
	PaymentID string                `json:"paymentId"`
	Signature string                `json:"signature,omitempty"`
	UserID    *string               `json:"userId,omitempty"`
	Source    models.DonationSource `json:"source"`
	Input     DonationInput         `json:"input"`
}

// ReversalTask - payload для TaskRefund и TaskPaymentFailed
type ReversalTask struct {
	RefundID *string `json:"refundId,omitempty"`
}
