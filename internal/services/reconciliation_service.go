package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/pkg/apperrors"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ReconciliationSettings - параметры очереди сверки
type ReconciliationSettings struct {
	BatchSize    int
	Concurrency  int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	ReceiptDelay time.Duration // через сколько неотправленная квитанция считается потерянной
}

func (s ReconciliationSettings) withDefaults() ReconciliationSettings {
	if s.BatchSize <= 0 {
		s.BatchSize = 50
	}
	if s.Concurrency <= 0 {
		s.Concurrency = 4
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 10
	}
	if s.BaseBackoff <= 0 {
		s.BaseBackoff = 30 * time.Second
	}
	if s.MaxBackoff <= 0 {
		s.MaxBackoff = time.Hour
	}
	if s.ReceiptDelay <= 0 {
		s.ReceiptDelay = 10 * time.Minute
	}
	return s
}

// PassResult - итог одного прохода сверки
type PassResult struct {
	Processed int
	Done      int
	Retried   int
	Dead      int
	Requests  int // пересчитанные запросы с флагом needs_reconciliation
	Users     int
}

type ReconciliationService interface {
	ProcessDue(ctx context.Context, db *gorm.DB) (*PassResult, error)
	RecomputeFlagged(ctx context.Context, db *gorm.DB, result *PassResult) error
	SweepReceipts(ctx context.Context, db *gorm.DB) (int, error)
	ListTasks(ctx context.Context, db *gorm.DB, page, pageSize int) (*dto.ReconciliationListResponse, error)
}

type reconciliationService struct {
	repo         repositories.ReconciliationRepository
	donationRepo repositories.DonationRepository
	requestRepo  repositories.RequestRepository
	userRepo     repositories.UserRepository
	ledger       LedgerService
	receipts     ReceiptService
	queue        TaskQueue
	settings     ReconciliationSettings
	now          func() time.Time
}

func NewReconciliationService(
	repo repositories.ReconciliationRepository,
	donationRepo repositories.DonationRepository,
	requestRepo repositories.RequestRepository,
	userRepo repositories.UserRepository,
	ledger LedgerService,
	receipts ReceiptService,
	queue TaskQueue,
	settings ReconciliationSettings,
) ReconciliationService {
	return &reconciliationService{
		repo:         repo,
		donationRepo: donationRepo,
		requestRepo:  requestRepo,
		userRepo:     userRepo,
		ledger:       ledger,
		receipts:     receipts,
		queue:        queue,
		settings:     settings.withDefaults(),
		now:          time.Now,
	}
}

// ProcessDue берет пачку созревших тасков и обрабатывает их пулом ограниченного размера
func (s *reconciliationService) ProcessDue(ctx context.Context, db *gorm.DB) (*PassResult, error) {
	tasks, err := s.repo.FindDue(db.WithContext(ctx), s.now(), s.settings.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("find due tasks: %w", err)
	}

	result := &PassResult{}
	outcomes := make([]models.TaskStatus, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Concurrency)
	for i := range tasks {
		i := i
		g.Go(func() error {
			outcomes[i] = s.handle(gctx, db, &tasks[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, status := range outcomes {
		result.Processed++
		switch status {
		case models.TaskStatusDone:
			result.Done++
		case models.TaskStatusDead:
			result.Dead++
		default:
			result.Retried++
		}
	}

	if err := s.RecomputeFlagged(ctx, db, result); err != nil {
		return result, err
	}
	return result, nil
}

func (s *reconciliationService) handle(ctx context.Context, db *gorm.DB, task *models.ReconciliationTask) models.TaskStatus {
	err := s.run(ctx, db, task)
	if err == nil {
		if err := s.repo.MarkDone(db.WithContext(ctx), task.ID); err != nil {
			logger.WorkerLog("reconciliation", "mark_done", err, "task_id", task.ID)
		}
		logger.WorkerLog("reconciliation", "task_done", nil, "kind", task.Kind, "payment_id", task.PaymentID)
		return models.TaskStatusDone
	}

	attempts := task.Attempts + 1
	if attempts >= s.settings.MaxAttempts || isPermanent(err) {
		if markErr := s.repo.MarkDead(db.WithContext(ctx), task.ID, attempts, err.Error()); markErr != nil {
			logger.WorkerLog("reconciliation", "mark_dead", markErr, "task_id", task.ID)
		}
		logger.CtxError(ctx, "Reconciliation task is dead, manual action required",
			"task_id", task.ID,
			"kind", task.Kind,
			"payment_id", task.PaymentID,
			"attempts", attempts,
			"error", err.Error(),
		)
		return models.TaskStatusDead
	}

	next := s.now().Add(Backoff(attempts, s.settings.BaseBackoff, s.settings.MaxBackoff))
	if markErr := s.repo.MarkRetry(db.WithContext(ctx), task.ID, attempts, next, err.Error()); markErr != nil {
		logger.WorkerLog("reconciliation", "mark_retry", markErr, "task_id", task.ID)
	}
	logger.WorkerLog("reconciliation", "task_retry", err, "kind", task.Kind, "payment_id", task.PaymentID, "attempts", attempts, "next_run_at", next)
	return models.TaskStatusPending
}

func (s *reconciliationService) run(ctx context.Context, db *gorm.DB, task *models.ReconciliationTask) error {
	switch task.Kind {
	case models.TaskRecordDonation:
		var payload RecordTask
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return apperrors.NewValidationMessage("reconciliation", "corrupt payload: "+err.Error())
		}
		return s.ledger.ReplayRecord(ctx, db, payload)

	case models.TaskRefund, models.TaskPaymentFailed:
		var payload ReversalTask
		if len(task.Payload) > 0 {
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return apperrors.NewValidationMessage("reconciliation", "corrupt payload: "+err.Error())
			}
		}
		to := models.DonationStatusRefunded
		if task.Kind == models.TaskPaymentFailed {
			to = models.DonationStatusFailed
		}
		_, err := s.ledger.ReverseDonation(ctx, db, task.PaymentID, to, payload.RefundID)
		if errors.Is(err, repositories.ErrDonationNotFound) {
			// Запись может еще ждать в очереди record_donation
			pending, perr := s.repo.ExistsPending(db.WithContext(ctx), models.TaskRecordDonation, task.PaymentID)
			if perr != nil {
				return perr
			}
			if pending {
				return err
			}
			logger.WorkerLog("reconciliation", "nothing_to_reverse", nil, "payment_id", task.PaymentID)
			return nil
		}
		return err

	case models.TaskReceipt:
		donation, err := s.donationRepo.FindByPaymentID(db.WithContext(ctx), task.PaymentID)
		if err != nil {
			return err
		}
		if donation.ReceiptSent || donation.Status != models.DonationStatusCompleted {
			return nil
		}
		return s.receipts.Send(ctx, db, donation)

	default:
		return apperrors.NewValidationMessage("reconciliation", fmt.Sprintf("unknown task kind %q", task.Kind))
	}
}

// RecomputeFlagged пересчитывает агрегаты, прижатые к нулю при откате
func (s *reconciliationService) RecomputeFlagged(ctx context.Context, db *gorm.DB, result *PassResult) error {
	requests, err := s.requestRepo.FindNeedingReconciliation(db.WithContext(ctx), s.settings.BatchSize)
	if err != nil {
		return fmt.Errorf("find flagged requests: %w", err)
	}
	for _, r := range requests {
		if err := s.requestRepo.RecomputeTotals(db.WithContext(ctx), r.ID); err != nil {
			logger.WorkerLog("reconciliation", "recompute_request", err, "request_id", r.ID)
			continue
		}
		result.Requests++
	}

	users, err := s.userRepo.FindNeedingReconciliation(db.WithContext(ctx), s.settings.BatchSize)
	if err != nil {
		return fmt.Errorf("find flagged users: %w", err)
	}
	for _, u := range users {
		if err := s.userRepo.RecomputeTotals(db.WithContext(ctx), u.ID); err != nil {
			logger.WorkerLog("reconciliation", "recompute_user", err, "user_id", u.ID)
			continue
		}
		result.Users++
	}
	return nil
}

// SweepReceipts ставит в очередь квитанции, которые так и не ушли (например, процесс упал)
func (s *reconciliationService) SweepReceipts(ctx context.Context, db *gorm.DB) (int, error) {
	donations, err := s.donationRepo.FindUnsentReceipts(db.WithContext(ctx), s.now().Add(-s.settings.ReceiptDelay), s.settings.BatchSize)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, d := range donations {
		if d.DonorEmail == "" {
			continue
		}
		pending, err := s.repo.ExistsPending(db.WithContext(ctx), models.TaskReceipt, d.PaymentID)
		if err != nil {
			return queued, err
		}
		if pending {
			continue
		}
		if err := s.queue.Enqueue(ctx, db, models.TaskReceipt, d.PaymentID, struct{}{}, errors.New("receipt not sent")); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

func (s *reconciliationService) ListTasks(ctx context.Context, db *gorm.DB, page, pageSize int) (*dto.ReconciliationListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	tasks, total, err := s.repo.ListByStatus(db.WithContext(ctx),
		[]models.TaskStatus{models.TaskStatusPending, models.TaskStatusDead},
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	out := make([]dto.ReconciliationTaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, dto.ReconciliationTaskResponse{
			ID:        t.ID,
			Kind:      string(t.Kind),
			PaymentID: t.PaymentID,
			Status:    string(t.Status),
			Attempts:  t.Attempts,
			NextRunAt: t.NextRunAt,
			LastError: t.LastError,
			UpdatedAt: t.UpdatedAt,
		})
	}
	return &dto.ReconciliationListResponse{Tasks: out, Total: total, Page: page, PageSize: pageSize}, nil
}

// Backoff: base * 2^(attempt-1), не больше max
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// isPermanent - 4xx AppError: повтор с тем же payload не поможет
func isPermanent(err error) bool {
	return apperrors.IsClientError(err) && !apperrors.HasCode(err, apperrors.CodeNotFound)
}
