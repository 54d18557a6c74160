package repositories

import (
	"errors"
	"time"

	"helpinghands_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDonationNotFound = errors.New("donation not found")
)

type DonationRepository interface {
	// InsertIfAbsent вставляет запись, если payment_id еще не занят.
	// false без ошибки означает, что платеж уже записан другим писателем.
	InsertIfAbsent(db *gorm.DB, donation *models.Donation) (bool, error)
	FindByID(db *gorm.DB, id string) (*models.Donation, error)
	FindByPaymentID(db *gorm.DB, paymentID string) (*models.Donation, error)
	ExistsByPaymentID(db *gorm.DB, paymentID string) (bool, error)
	// TransitionStatus - CAS по статусу; возвращает число измененных строк
	TransitionStatus(db *gorm.DB, paymentID string, from []models.DonationStatus, to models.DonationStatus, refundID *string) (int64, error)
	MarkReceiptSent(db *gorm.DB, id string, receiptURL *string) error
	FindUnsentReceipts(db *gorm.DB, createdBefore time.Time, limit int) ([]models.Donation, error)
	SumCompletedByRequest(db *gorm.DB, requestID string) (sum int64, count int64, err error)
	SumCompletedByUser(db *gorm.DB, userID string) (sum int64, count int64, err error)
	DeleteAll(db *gorm.DB) (int64, error)
}

type DonationRepositoryImpl struct{}

func NewDonationRepository() DonationRepository {
	return &DonationRepositoryImpl{}
}

func (r *DonationRepositoryImpl) InsertIfAbsent(db *gorm.DB, donation *models.Donation) (bool, error) {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoNothing: true,
	}).Create(donation)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *DonationRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Donation, error) {
	var donation models.Donation
	if err := db.First(&donation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}
	return &donation, nil
}

func (r *DonationRepositoryImpl) FindByPaymentID(db *gorm.DB, paymentID string) (*models.Donation, error) {
	var donation models.Donation
	if err := db.Where("payment_id = ?", paymentID).First(&donation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}
	return &donation, nil
}

func (r *DonationRepositoryImpl) ExistsByPaymentID(db *gorm.DB, paymentID string) (bool, error) {
	var count int64
	err := db.Model(&models.Donation{}).Where("payment_id = ?", paymentID).Count(&count).Error
	return count > 0, err
}

func (r *DonationRepositoryImpl) TransitionStatus(db *gorm.DB, paymentID string, from []models.DonationStatus, to models.DonationStatus, refundID *string) (int64, error) {
	updates := map[string]interface{}{"status": to}
	if refundID != nil {
		updates["refund_id"] = *refundID
	}
	result := db.Model(&models.Donation{}).
		Where("payment_id = ? AND status IN ?", paymentID, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *DonationRepositoryImpl) MarkReceiptSent(db *gorm.DB, id string, receiptURL *string) error {
	updates := map[string]interface{}{"receipt_sent": true}
	if receiptURL != nil {
		updates["receipt_url"] = *receiptURL
	}
	return db.Model(&models.Donation{}).Where("id = ?", id).Updates(updates).Error
}

func (r *DonationRepositoryImpl) FindUnsentReceipts(db *gorm.DB, createdBefore time.Time, limit int) ([]models.Donation, error) {
	var donations []models.Donation
	err := db.Where("status = ? AND receipt_sent = ? AND created_at < ?", models.DonationStatusCompleted, false, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&donations).Error
	return donations, err
}

type totalsRow struct {
	Sum   int64
	Count int64
}

func (r *DonationRepositoryImpl) SumCompletedByRequest(db *gorm.DB, requestID string) (int64, int64, error) {
	var row totalsRow
	err := db.Model(&models.Donation{}).
		Select("COALESCE(SUM(amount), 0) AS sum, COUNT(*) AS count").
		Where("request_id = ? AND status = ?", requestID, models.DonationStatusCompleted).
		Scan(&row).Error
	return row.Sum, row.Count, err
}

func (r *DonationRepositoryImpl) SumCompletedByUser(db *gorm.DB, userID string) (int64, int64, error) {
	var row totalsRow
	err := db.Model(&models.Donation{}).
		Select("COALESCE(SUM(amount), 0) AS sum, COUNT(*) AS count").
		Where("user_id = ? AND status = ?", userID, models.DonationStatusCompleted).
		Scan(&row).Error
	return row.Sum, row.Count, err
}

func (r *DonationRepositoryImpl) DeleteAll(db *gorm.DB) (int64, error) {
	result := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Donation{})
	return result.RowsAffected, result.Error
}
