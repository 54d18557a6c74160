package repositories

import (
	"errors"

	"helpinghands_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	FindByID(db *gorm.DB, id string) (*models.User, error)
	// AddDonation: total_donations += 1, total_donated += amount
	AddDonation(db *gorm.DB, id string, amount int64) error
	// RemoveDonation - как у RequestRepository: не ниже нуля, с пометкой для сверки
	RemoveDonation(db *gorm.DB, id string, amount int64) (clamped bool, err error)
	FindNeedingReconciliation(db *gorm.DB, limit int) ([]models.User, error)
	RecomputeTotals(db *gorm.DB, id string) error
	ResetAll(db *gorm.DB) (int64, error)
}

type UserRepositoryImpl struct{}

func NewUserRepository() UserRepository {
	return &UserRepositoryImpl{}
}

func (r *UserRepositoryImpl) Create(db *gorm.DB, user *models.User) error {
	return db.Create(user).Error
}

func (r *UserRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) AddDonation(db *gorm.DB, id string, amount int64) error {
	result := db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_donations": gorm.Expr("total_donations + 1"),
		"total_donated":   gorm.Expr("total_donated + ?", amount),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) RemoveDonation(db *gorm.DB, id string, amount int64) (bool, error) {
	result := db.Model(&models.User{}).
		Where("id = ? AND total_donated >= ? AND total_donations >= 1", id, amount).
		Updates(map[string]interface{}{
			"total_donations": gorm.Expr("total_donations - 1"),
			"total_donated":   gorm.Expr("total_donated - ?", amount),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return false, nil
	}

	result = db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_donations":      gorm.Expr("CASE WHEN total_donations >= 1 THEN total_donations - 1 ELSE 0 END"),
		"total_donated":        gorm.Expr("CASE WHEN total_donated >= ? THEN total_donated - ? ELSE 0 END", amount, amount),
		"needs_reconciliation": true,
	})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, ErrUserNotFound
	}
	return true, nil
}

func (r *UserRepositoryImpl) FindNeedingReconciliation(db *gorm.DB, limit int) ([]models.User, error) {
	var users []models.User
	err := db.Where("needs_reconciliation = ?", true).Limit(limit).Find(&users).Error
	return users, err
}

func (r *UserRepositoryImpl) RecomputeTotals(db *gorm.DB, id string) error {
	completed := func() *gorm.DB {
		return db.Session(&gorm.Session{NewDB: true}).Model(&models.Donation{}).
			Where("user_id = ? AND status = ?", id, models.DonationStatusCompleted)
	}
	return db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_donated":        completed().Select("COALESCE(SUM(amount), 0)"),
		"total_donations":      completed().Select("COUNT(*)"),
		"needs_reconciliation": false,
	}).Error
}

func (r *UserRepositoryImpl) ResetAll(db *gorm.DB) (int64, error) {
	result := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Model(&models.User{}).Updates(map[string]interface{}{
		"total_donations":      0,
		"total_donated":        0,
		"needs_reconciliation": false,
	})
	return result.RowsAffected, result.Error
}
