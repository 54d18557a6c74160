package workers

import (
	"context"
	"time"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/services"

	"gorm.io/gorm"
)

// ReceiptWorker подбирает завершенные пожертвования без отправленной квитанции
type ReceiptWorker struct {
	db       *gorm.DB
	service  services.ReconciliationService
	interval time.Duration
}

func NewReceiptWorker(db *gorm.DB, service services.ReconciliationService, interval time.Duration) *ReceiptWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ReceiptWorker{db: db, service: service, interval: interval}
}

func (w *ReceiptWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Receipt worker stopped")
			return
		case <-ticker.C:
			queued, err := w.service.SweepReceipts(ctx, w.db)
			if err != nil {
				logger.WorkerLog("receipts", "sweep", err)
			} else if queued > 0 {
				logger.Info("Queued missing receipts", "count", queued)
			}
		}
	}
}
