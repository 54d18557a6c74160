package workers

import (
	"context"
	"time"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/services"

	"gorm.io/gorm"
)

type ReconciliationWorker struct {
	db       *gorm.DB
	service  services.ReconciliationService
	interval time.Duration
}

func NewReconciliationWorker(db *gorm.DB, service services.ReconciliationService, interval time.Duration) *ReconciliationWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconciliationWorker{db: db, service: service, interval: interval}
}

// Start запускает обработку очереди сверки; блокируется до отмены ctx
func (w *ReconciliationWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Reconciliation worker started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Reconciliation worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce - один проход: созревшие таски и пересчет помеченных агрегатов
func (w *ReconciliationWorker) RunOnce(ctx context.Context) *services.PassResult {
	result, err := w.service.ProcessDue(ctx, w.db)
	if err != nil {
		logger.WorkerLog("reconciliation", "process_due", err)
		return result
	}
	if result.Processed > 0 || result.Requests > 0 || result.Users > 0 {
		logger.Info("Reconciliation pass finished",
			"processed", result.Processed,
			"done", result.Done,
			"retried", result.Retried,
			"dead", result.Dead,
			"requests_recomputed", result.Requests,
			"users_recomputed", result.Users,
		)
	}
	return result
}
