package services

import (
	"context"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// ResetService - административный сброс бухгалтерии: удаляет все пожертвования
// и обнуляет агрегаты пользователей и запросов одной транзакцией.
type ResetService interface {
	ResetDonations(ctx context.Context, db *gorm.DB) (*dto.ResetSummary, error)
}

type resetService struct {
	donationRepo repositories.DonationRepository
	userRepo     repositories.UserRepository
	requestRepo  repositories.RequestRepository
}

func NewResetService(
	donationRepo repositories.DonationRepository,
	userRepo repositories.UserRepository,
	requestRepo repositories.RequestRepository,
) ResetService {
	return &resetService{
		donationRepo: donationRepo,
		userRepo:     userRepo,
		requestRepo:  requestRepo,
	}
}

func (s *resetService) ResetDonations(ctx context.Context, db *gorm.DB) (*dto.ResetSummary, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.DatabaseError(tx.Error)
	}
	defer tx.Rollback()

	deleted, err := s.donationRepo.DeleteAll(tx)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	users, err := s.userRepo.ResetAll(tx)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	requests, err := s.requestRepo.ResetAll(tx)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	summary := &dto.ResetSummary{DeletedDonations: deleted, ResetUsers: users, ResetRequests: requests}
	logger.CtxWarn(ctx, "Donation ledger reset",
		"deleted_donations", deleted,
		"reset_users", users,
		"reset_requests", requests,
	)
	return summary, nil
}
