package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"helpinghands_backend/internal/email"
	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/storage"

	"gorm.io/gorm"
)

const (
	receiptSendTimeout  = 30 * time.Second
	receiptMarkAttempts = 3
	receiptMarkBackoff  = 50 * time.Millisecond
)

type ReceiptService interface {
	// Dispatch отправляет квитанцию в фоне; ошибка ставит таск receipt в очередь сверки
	Dispatch(ctx context.Context, db *gorm.DB, donation *models.Donation)
	// Send - синхронная отправка: рендер, архив, письмо, receipt_sent=true.
	// Ошибка отметки после отправленного письма только логируется.
	Send(ctx context.Context, db *gorm.DB, donation *models.Donation) error
}

type receiptService struct {
	provider     email.Provider
	renderer     email.TemplateRenderer
	archive      storage.Storage // nil - архив отключен
	donationRepo repositories.DonationRepository
	queue        TaskQueue
}

func NewReceiptService(
	provider email.Provider,
	renderer email.TemplateRenderer,
	archive storage.Storage,
	donationRepo repositories.DonationRepository,
	queue TaskQueue,
) ReceiptService {
	if provider == nil {
		provider = email.LogProvider{}
	}
	if renderer == nil {
		tm, err := email.NewDefaultTemplateManager("")
		if err != nil {
			panic(fmt.Sprintf("embedded receipt template: %v", err))
		}
		renderer = tm
	}
	return &receiptService{
		provider:     provider,
		renderer:     renderer,
		archive:      archive,
		donationRepo: donationRepo,
		queue:        queue,
	}
}

func (s *receiptService) Dispatch(ctx context.Context, db *gorm.DB, donation *models.Donation) {
	if donation.DonorEmail == "" {
		logger.CtxWarn(ctx, "No donor email, receipt skipped", "payment_id", donation.PaymentID)
		return
	}
	d := *donation
	bg := logger.Detach(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(bg, receiptSendTimeout)
		defer cancel()

		if err := s.Send(ctx, db, &d); err != nil {
			logger.CtxWithError(bg, "Failed to send donation receipt", err,
				"payment_id", d.PaymentID,
				"transaction_id", d.TransactionID,
			)
			if s.queue != nil {
				_ = s.queue.Enqueue(bg, db, models.TaskReceipt, d.PaymentID, struct{}{}, err)
			}
		}
	}()
}

func (s *receiptService) Send(ctx context.Context, db *gorm.DB, donation *models.Donation) error {
	if donation.DonorEmail == "" {
		return fmt.Errorf("donation %s has no donor email", donation.ID)
	}

	data := email.ReceiptData{
		DonorName:     donation.DonorName,
		Amount:        donation.AmountMajor(),
		Currency:      donation.Currency,
		Cause:         string(donation.Cause),
		TransactionID: donation.TransactionID,
		Date:          donation.CreatedAt,
	}
	if data.Date.IsZero() {
		data.Date = time.Now()
	}

	html, err := s.renderer.Render(email.ReceiptTemplate, data.TemplateData())
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}

	// Архив не обязателен: без него письмо все равно уходит
	var receiptURL *string
	if s.archive != nil {
		path := storage.ReceiptPath(donation.TransactionID)
		if err := s.archive.Save(ctx, path, strings.NewReader(html), "text/html; charset=utf-8"); err != nil {
			logger.CtxWarn(ctx, "Failed to archive receipt", "transaction_id", donation.TransactionID, "error", err.Error())
		} else if url, err := s.archive.GetURL(ctx, path); err == nil {
			receiptURL = &url
		}
	}

	if err := s.provider.Send(ctx, &email.Email{
		To:       []string{donation.DonorEmail},
		Subject:  email.ReceiptSubject,
		HTMLBody: html,
	}); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}

	// Письмо уже ушло: при ошибке повторяем только отметку, не отправку
	if err := s.markSent(ctx, db, donation.ID, receiptURL); err != nil {
		logger.CtxWithError(ctx, "Receipt sent but not marked", err,
			"payment_id", donation.PaymentID,
			"transaction_id", donation.TransactionID,
		)
		return nil
	}

	donation.ReceiptSent = true
	donation.ReceiptURL = receiptURL
	logger.CtxInfo(ctx, "Donation receipt sent", "transaction_id", donation.TransactionID)
	return nil
}

func (s *receiptService) markSent(ctx context.Context, db *gorm.DB, donationID string, receiptURL *string) error {
	var err error
	for attempt := 1; attempt <= receiptMarkAttempts; attempt++ {
		if err = s.donationRepo.MarkReceiptSent(db.WithContext(ctx), donationID, receiptURL); err == nil {
			return nil
		}
		if attempt == receiptMarkAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * receiptMarkBackoff):
		}
	}
	return err
}
