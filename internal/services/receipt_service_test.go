package services_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// flakyMarkRepo роняет первые failures вызовов MarkReceiptSent
type flakyMarkRepo struct {
	repositories.DonationRepository
	failures int32
	calls    atomic.Int32
}

func (r *flakyMarkRepo) MarkReceiptSent(db *gorm.DB, id string, receiptURL *string) error {
	if r.calls.Add(1) <= r.failures {
		return errors.New("database is locked")
	}
	return r.DonationRepository.MarkReceiptSent(db, id, receiptURL)
}

func storedDonation(t *testing.T, f *fixture, paymentID string) *models.Donation {
	t.Helper()
	d := &models.Donation{
		Amount:        25000,
		Currency:      "INR",
		Cause:         models.CauseMedical,
		PaymentMethod: models.PaymentMethodUPI,
		TransactionID: "TXN_" + paymentID,
		OrderID:       "order_" + paymentID,
		PaymentID:     paymentID,
		Status:        models.DonationStatusCompleted,
		Source:        models.DonationSourceVerify,
		DonorName:     "Asha",
		DonorEmail:    "asha@test.com",
	}
	require.NoError(t, f.db.Create(d).Error)
	return d
}

func TestReceiptSend_RetriesOnlyMark(t *testing.T) {
	f := newFixture(t)
	repo := &flakyMarkRepo{DonationRepository: repositories.NewDonationRepository(), failures: 1}
	receipts := services.NewReceiptService(f.mocks.Mail, nil, nil, repo, f.sc.TaskQueue)
	d := storedDonation(t, f, "pay_mark_retry")

	require.NoError(t, receipts.Send(f.ctx, f.db, d))

	assert.Len(t, f.mocks.Mail.Sent(), 1)
	assert.Equal(t, int32(2), repo.calls.Load())
	assert.True(t, f.donation(t, "pay_mark_retry").ReceiptSent)
}

func TestReceiptSend_MarkFailureDoesNotResend(t *testing.T) {
	f := newFixture(t)
	repo := &flakyMarkRepo{DonationRepository: repositories.NewDonationRepository(), failures: 100}
	receipts := services.NewReceiptService(f.mocks.Mail, nil, nil, repo, f.sc.TaskQueue)
	d := storedDonation(t, f, "pay_mark_down")

	require.NoError(t, receipts.Send(f.ctx, f.db, d))

	assert.Len(t, f.mocks.Mail.Sent(), 1)
	assert.Equal(t, int32(3), repo.calls.Load())
	assert.False(t, f.donation(t, "pay_mark_down").ReceiptSent)

	var queued int64
	require.NoError(t, f.db.Model(&models.ReconciliationTask{}).Where("kind = ?", models.TaskReceipt).Count(&queued).Error)
	assert.Zero(t, queued)
}
