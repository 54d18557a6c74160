package repositories

import (
	"errors"

	"helpinghands_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrRequestNotFound = errors.New("request not found")
)

// RequestRepository - все изменения агрегатов выражены атомарными дельтами в SQL,
// без чтения-изменения-записи на стороне приложения.
type RequestRepository interface {
	Create(db *gorm.DB, request *models.Request) error
	FindByID(db *gorm.DB, id string) (*models.Request, error)
	// AddDonation: amount_raised += amount, donors_count += 1
	AddDonation(db *gorm.DB, id string, amount int64) error
	// RemoveDonation вычитает дельту, но не уходит ниже нуля.
	// clamped=true, если пришлось прижать к нулю и пометить запись для сверки.
	RemoveDonation(db *gorm.DB, id string, amount int64) (clamped bool, err error)
	FindNeedingReconciliation(db *gorm.DB, limit int) ([]models.Request, error)
	// RecomputeTotals пересчитывает агрегаты из donations одним UPDATE и снимает флаг сверки
	RecomputeTotals(db *gorm.DB, id string) error
	ResetAll(db *gorm.DB) (int64, error)
}

type RequestRepositoryImpl struct{}

func NewRequestRepository() RequestRepository {
	return &RequestRepositoryImpl{}
}

func (r *RequestRepositoryImpl) Create(db *gorm.DB, request *models.Request) error {
	return db.Create(request).Error
}

func (r *RequestRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Request, error) {
	var request models.Request
	if err := db.First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &request, nil
}

func (r *RequestRepositoryImpl) AddDonation(db *gorm.DB, id string, amount int64) error {
	result := db.Model(&models.Request{}).Where("id = ?", id).Updates(map[string]interface{}{
		"amount_raised": gorm.Expr("amount_raised + ?", amount),
		"donors_count":  gorm.Expr("donors_count + 1"),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepositoryImpl) RemoveDonation(db *gorm.DB, id string, amount int64) (bool, error) {
	result := db.Model(&models.Request{}).
		Where("id = ? AND amount_raised >= ? AND donors_count >= 1", id, amount).
		Updates(map[string]interface{}{
			"amount_raised": gorm.Expr("amount_raised - ?", amount),
			"donors_count":  gorm.Expr("donors_count - 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return false, nil
	}

	// Счетчик меньше дельты: прижимаем к нулю и помечаем для сверки
	result = db.Model(&models.Request{}).Where("id = ?", id).Updates(map[string]interface{}{
		"amount_raised":        gorm.Expr("CASE WHEN amount_raised >= ? THEN amount_raised - ? ELSE 0 END", amount, amount),
		"donors_count":         gorm.Expr("CASE WHEN donors_count >= 1 THEN donors_count - 1 ELSE 0 END"),
		"needs_reconciliation": true,
	})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, ErrRequestNotFound
	}
	return true, nil
}

func (r *RequestRepositoryImpl) FindNeedingReconciliation(db *gorm.DB, limit int) ([]models.Request, error) {
	var requests []models.Request
	err := db.Where("needs_reconciliation = ?", true).Limit(limit).Find(&requests).Error
	return requests, err
}

func (r *RequestRepositoryImpl) RecomputeTotals(db *gorm.DB, id string) error {
	completed := func() *gorm.DB {
		return db.Session(&gorm.Session{NewDB: true}).Model(&models.Donation{}).
			Where("request_id = ? AND status = ?", id, models.DonationStatusCompleted)
	}
	return db.Model(&models.Request{}).Where("id = ?", id).Updates(map[string]interface{}{
		"amount_raised":        completed().Select("COALESCE(SUM(amount), 0)"),
		"donors_count":         completed().Select("COUNT(*)"),
		"needs_reconciliation": false,
	}).Error
}

func (r *RequestRepositoryImpl) ResetAll(db *gorm.DB) (int64, error) {
	result := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Model(&models.Request{}).Updates(map[string]interface{}{
		"amount_raised":        0,
		"donors_count":         0,
		"needs_reconciliation": false,
	})
	return result.RowsAffected, result.Error
}
