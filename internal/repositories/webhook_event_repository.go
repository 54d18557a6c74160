package repositories

import (
	"time"

	"helpinghands_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	// Record возвращает false, если событие с таким EventID уже принималось
	Record(db *gorm.DB, event *models.WebhookEvent) (bool, error)
	MarkProcessed(db *gorm.DB, id string, processErr error) error
}

type WebhookEventRepositoryImpl struct{}

func NewWebhookEventRepository() WebhookEventRepository {
	return &WebhookEventRepositoryImpl{}
}

func (r *WebhookEventRepositoryImpl) Record(db *gorm.DB, event *models.WebhookEvent) (bool, error) {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *WebhookEventRepositoryImpl) MarkProcessed(db *gorm.DB, id string, processErr error) error {
	updates := map[string]interface{}{"processed_at": time.Now()}
	if processErr != nil {
		updates["error"] = processErr.Error()
	}
	return db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
