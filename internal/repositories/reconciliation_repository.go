package repositories

import (
	"errors"
	"time"

	"helpinghands_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrReconciliationTaskNotFound = errors.New("reconciliation task not found")

type ReconciliationRepository interface {
	// Enqueue создает таск или переоткрывает существующий для той же пары (kind, payment_id)
	Enqueue(db *gorm.DB, task *models.ReconciliationTask) error
	FindDue(db *gorm.DB, now time.Time, limit int) ([]models.ReconciliationTask, error)
	ExistsPending(db *gorm.DB, kind models.TaskKind, paymentID string) (bool, error)
	// FindByKind ищет таск в любом статусе
	FindByKind(db *gorm.DB, kind models.TaskKind, paymentID string) (*models.ReconciliationTask, error)
	MarkDone(db *gorm.DB, id string) error
	MarkRetry(db *gorm.DB, id string, attempts int, nextRunAt time.Time, lastErr string) error
	MarkDead(db *gorm.DB, id string, attempts int, lastErr string) error
	ListByStatus(db *gorm.DB, statuses []models.TaskStatus, limit, offset int) ([]models.ReconciliationTask, int64, error)
}

type ReconciliationRepositoryImpl struct{}

func NewReconciliationRepository() ReconciliationRepository {
	return &ReconciliationRepositoryImpl{}
}

func (r *ReconciliationRepositoryImpl) Enqueue(db *gorm.DB, task *models.ReconciliationTask) error {
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.NextRunAt.IsZero() {
		task.NextRunAt = time.Now()
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "payment_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payload":     task.Payload,
			"status":      models.TaskStatusPending,
			"attempts":    0,
			"next_run_at": task.NextRunAt,
			"last_error":  task.LastError,
			"updated_at":  time.Now(),
		}),
	}).Create(task).Error
}

func (r *ReconciliationRepositoryImpl) FindDue(db *gorm.DB, now time.Time, limit int) ([]models.ReconciliationTask, error) {
	var tasks []models.ReconciliationTask
	err := db.Where("status = ? AND next_run_at <= ?", models.TaskStatusPending, now).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

func (r *ReconciliationRepositoryImpl) ExistsPending(db *gorm.DB, kind models.TaskKind, paymentID string) (bool, error) {
	var count int64
	err := db.Model(&models.ReconciliationTask{}).
		Where("kind = ? AND payment_id = ? AND status = ?", kind, paymentID, models.TaskStatusPending).
		Count(&count).Error
	return count > 0, err
}

func (r *ReconciliationRepositoryImpl) FindByKind(db *gorm.DB, kind models.TaskKind, paymentID string) (*models.ReconciliationTask, error) {
	var task models.ReconciliationTask
	err := db.Where("kind = ? AND payment_id = ?", kind, paymentID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReconciliationTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *ReconciliationRepositoryImpl) MarkDone(db *gorm.DB, id string) error {
	return db.Model(&models.ReconciliationTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     models.TaskStatusDone,
		"last_error": "",
	}).Error
}

func (r *ReconciliationRepositoryImpl) MarkRetry(db *gorm.DB, id string, attempts int, nextRunAt time.Time, lastErr string) error {
	return db.Model(&models.ReconciliationTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"attempts":    attempts,
		"next_run_at": nextRunAt,
		"last_error":  lastErr,
	}).Error
}

func (r *ReconciliationRepositoryImpl) MarkDead(db *gorm.DB, id string, attempts int, lastErr string) error {
	return db.Model(&models.ReconciliationTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     models.TaskStatusDead,
		"attempts":   attempts,
		"last_error": lastErr,
	}).Error
}

func (r *ReconciliationRepositoryImpl) ListByStatus(db *gorm.DB, statuses []models.TaskStatus, limit, offset int) ([]models.ReconciliationTask, int64, error) {
	var (
		tasks []models.ReconciliationTask
		total int64
	)
	query := db.Model(&models.ReconciliationTask{}).Where("status IN ?", statuses)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&tasks).Error
	return tasks, total, err
}
