package services

import (
	"context"
	"errors"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type RequestService interface {
	GetProgress(ctx context.Context, db *gorm.DB, requestID string) (*dto.RequestProgressResponse, error)
}

type requestService struct {
	requestRepo repositories.RequestRepository
}

func NewRequestService(requestRepo repositories.RequestRepository) RequestService {
	return &requestService{requestRepo: requestRepo}
}

func (s *requestService) GetProgress(ctx context.Context, db *gorm.DB, requestID string) (*dto.RequestProgressResponse, error) {
	request, err := s.requestRepo.FindByID(db.WithContext(ctx), requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestNotFound) {
			return nil, apperrors.ErrRequestNotFound
		}
		logger.CtxWithError(ctx, "Failed to load request", err, "request_id", requestID)
		return nil, apperrors.DatabaseError(err)
	}

	return &dto.RequestProgressResponse{
		RequestID:           request.ID,
		AmountNeeded:        request.AmountNeededMajor(),
		AmountRaised:        request.AmountRaisedMajor(),
		DonorsCount:         request.DonorsCount,
		ProgressPercentage:  request.ProgressPercentage(),
		NeedsReconciliation: request.NeedsReconciliation,
	}, nil
}
