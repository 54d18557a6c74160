package repositories

import (
	"errors"

	"helpinghands_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPaymentOrderNotFound = errors.New("payment order not found")
)

type PaymentOrderRepository interface {
	Create(db *gorm.DB, order *models.PaymentOrder) error
	FindByOrderID(db *gorm.DB, orderID string) (*models.PaymentOrder, error)
	MarkPaid(db *gorm.DB, orderID string) error
}

type PaymentOrderRepositoryImpl struct{}

func NewPaymentOrderRepository() PaymentOrderRepository {
	return &PaymentOrderRepositoryImpl{}
}

func (r *PaymentOrderRepositoryImpl) Create(db *gorm.DB, order *models.PaymentOrder) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(order).Error
}

func (r *PaymentOrderRepositoryImpl) FindByOrderID(db *gorm.DB, orderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// MarkPaid не считает отсутствие заказа ошибкой: заказ мог быть создан до появления таблицы
func (r *PaymentOrderRepositoryImpl) MarkPaid(db *gorm.DB, orderID string) error {
	return db.Model(&models.PaymentOrder{}).
		Where("order_id = ?", orderID).
		Update("status", models.PaymentOrderPaid).Error
}
