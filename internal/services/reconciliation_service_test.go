package services_test

import (
	"errors"
	"testing"
	"time"

	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services"
	"helpinghands_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	base, max := 30*time.Second, 10*time.Minute
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{5, 8 * time.Minute},
		{6, 10 * time.Minute},
		{40, 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, services.Backoff(tt.attempt, base, max), "attempt %d", tt.attempt)
	}
}

func taskStatus(t *testing.T, f *fixture, kind models.TaskKind, paymentID string) models.ReconciliationTask {
	t.Helper()
	var task models.ReconciliationTask
	require.NoError(t, f.db.Where("kind = ? AND payment_id = ?", kind, paymentID).First(&task).Error)
	return task
}

func TestProcessDue_ReplaysQueuedDonation(t *testing.T) {
	f := newFixture(t)
	request := helpers.CreateRequest(t, f.db, 1_000_000)

	require.NoError(t, f.sc.TaskQueue.Enqueue(f.ctx, f.db, models.TaskRecordDonation, "pay_replay", services.RecordTask{
		OrderID:   "order_replay",
		PaymentID: "pay_replay",
		Source:    models.DonationSourceVerify,
		Input: services.DonationInput{
			Amount:        12500,
			Currency:      "INR",
			Cause:         models.CauseShelter,
			PaymentMethod: models.PaymentMethodUPI,
			DonorName:     "Kiran",
			RequestID:     &request.ID,
		},
	}, errors.New("database is locked")))

	result, err := f.sc.ReconciliationService.ProcessDue(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Done)

	assert.Equal(t, int64(12500), f.donation(t, "pay_replay").Amount)
	assert.Equal(t, int64(12500), helpers.ReloadRequest(t, f.db, request.ID).AmountRaised)
	assert.Equal(t, models.TaskStatusDone, taskStatus(t, f, models.TaskRecordDonation, "pay_replay").Status)

	// повторный проход ничего не находит
	result, err = f.sc.ReconciliationService.ProcessDue(f.ctx, f.db)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}

func TestProcessDue_PermanentFailureGoesDead(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sc.TaskQueue.Enqueue(f.ctx, f.db, models.TaskRecordDonation, "pay_orphan", services.RecordTask{
		PaymentID: "pay_orphan",
		Source:    models.DonationSourceWebhook,
		Input: services.DonationInput{
			Amount:        10000,
			Currency:      "INR",
			Cause:         "crypto",
			PaymentMethod: models.PaymentMethodCard,
			DonorName:     "Anonymous",
		},
	}, nil))

	result, err := f.sc.ReconciliationService.ProcessDue(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dead)

	task := taskStatus(t, f, models.TaskRecordDonation, "pay_orphan")
	assert.Equal(t, models.TaskStatusDead, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.Contains(t, task.LastError, "Validation failed")
	assert.Equal(t, int64(0), helpers.CountDonations(t, f.db))
}

func TestProcessDue_ReplayWithUnknownRequestRecordsUnmatched(t *testing.T) {
	f := newFixture(t)
	missing := "22222222-2222-2222-2222-222222222222"

	require.NoError(t, f.sc.TaskQueue.Enqueue(f.ctx, f.db, models.TaskRecordDonation, "pay_unmatched", services.RecordTask{
		PaymentID: "pay_unmatched",
		Source:    models.DonationSourceWebhook,
		Input: services.DonationInput{
			Amount:        10000,
			Currency:      "INR",
			Cause:         models.CauseGeneral,
			PaymentMethod: models.PaymentMethodCard,
			DonorName:     "Anonymous",
			RequestID:     &missing,
		},
	}, nil))

	result, err := f.sc.ReconciliationService.ProcessDue(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Done)

	d := f.donation(t, "pay_unmatched")
	assert.Equal(t, models.DonationStatusCompleted, d.Status)
	assert.Nil(t, d.RequestID)
	require.NotNil(t, d.UnmatchedRequestID)
	assert.Equal(t, missing, *d.UnmatchedRequestID)
}

func TestProcessDue_RetriesWithBackoffUntilDead(t *testing.T) {
	f := newFixture(t)
	repo := repositories.NewReconciliationRepository()

	// запись пожертвования еще ждет своей очереди
	require.NoError(t, repo.Enqueue(f.db, &models.ReconciliationTask{
		Kind:      models.TaskRecordDonation,
		PaymentID: "pay_later",
		Payload:   []byte(`{}`),
		NextRunAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, f.sc.TaskQueue.Enqueue(f.ctx, f.db, models.TaskRefund, "pay_later", services.ReversalTask{}, errors.New("timeout")))

	for attempt := 1; attempt <= 3; attempt++ {
		time.Sleep(5 * time.Millisecond)
		result, err := f.sc.ReconciliationService.ProcessDue(f.ctx, f.db)
		require.NoError(t, err)
		require.Equal(t, 1, result.Processed, "attempt %d", attempt)

		task := taskStatus(t, f, models.TaskRefund, "pay_later")
		assert.Equal(t, attempt, task.Attempts)
		if attempt < 3 {
			assert.Equal(t, 1, result.Retried)
			assert.Equal(t, models.TaskStatusPending, task.Status)
		} else {
			assert.Equal(t, 1, result.Dead)
			assert.Equal(t, models.TaskStatusDead, task.Status)
		}
	}
}

func TestProcessDue_ReversalWithoutDonationIsDone(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sc.TaskQueue.Enqueue(f.ctx, f.db, models.TaskPaymentFailed, "pay_gone", services.ReversalTask{}, nil))

	result, err := f.sc.ReconciliationService.ProcessDue(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Done)
}

func TestProcessDue_RecomputesFlaggedAggregates(t *testing.T) {
	f := newFixture(t)
	request := helpers.CreateRequest(t, f.db, 1_000_000)
	user := helpers.CreateUser(t, f.db, models.UserRoleUser)

	for _, amount := range []int64{100, 300} {
		orderID, paymentID, sig := f.checkout(t, amount)
		_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, amount, &request.ID), &user.ID)
		require.NoError(t, err)
	}

	require.NoError(t, f.db.Model(&models.Request{}).Where("id = ?", request.ID).
		Updates(map[string]interface{}{"amount_raised": 1, "donors_count": 7, "needs_reconciliation": true}).Error)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"total_donated": 0, "needs_reconciliation": true}).Error)

	result, err := f.sc.ReconciliationService.ProcessDue(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Requests)
	assert.Equal(t, 1, result.Users)

	r := helpers.ReloadRequest(t, f.db, request.ID)
	assert.Equal(t, int64(40000), r.AmountRaised)
	assert.Equal(t, int64(2), r.DonorsCount)
	assert.False(t, r.NeedsReconciliation)

	u := helpers.ReloadUser(t, f.db, user.ID)
	assert.Equal(t, int64(40000), u.TotalDonated)
	assert.Equal(t, int64(2), u.TotalDonations)
	assert.False(t, u.NeedsReconciliation)
}

func TestProcessDue_ResendsFailedReceipt(t *testing.T) {
	f := newFixture(t)
	f.mocks.Mail.FailWith(errors.New("smtp unavailable"))

	orderID, paymentID, sig := f.checkout(t, 150)
	_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, 150, nil), nil)
	require.NoError(t, err)

	helpers.WaitFor(t, func() bool {
		var count int64
		f.db.Model(&models.ReconciliationTask{}).Where("kind = ?", models.TaskReceipt).Count(&count)
		return count == 1
	})
	assert.False(t, f.donation(t, paymentID).ReceiptSent)

	f.mocks.Mail.FailWith(nil)
	result, err := f.sc.ReconciliationService.ProcessDue(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Done)

	assert.True(t, f.donation(t, paymentID).ReceiptSent)
	require.Len(t, f.mocks.Mail.Sent(), 1)
}

func TestSweepReceipts_QueuesStaleUnsent(t *testing.T) {
	f := newFixture(t)
	old := time.Now().Add(-time.Hour)
	stale := &models.Donation{
		BaseModel:     models.BaseModel{CreatedAt: old},
		Amount:        10000,
		Currency:      "INR",
		Cause:         models.CauseGeneral,
		PaymentMethod: models.PaymentMethodCard,
		TransactionID: "TXN1",
		PaymentID:     "pay_stale",
		Status:        models.DonationStatusCompleted,
		DonorName:     "Old",
		DonorEmail:    "old@test.com",
	}
	noEmail := &models.Donation{
		BaseModel:     models.BaseModel{CreatedAt: old},
		Amount:        10000,
		Currency:      "INR",
		Cause:         models.CauseGeneral,
		PaymentMethod: models.PaymentMethodCard,
		TransactionID: "TXN2",
		PaymentID:     "pay_noemail",
		Status:        models.DonationStatusCompleted,
		DonorName:     "Anonymous",
	}
	require.NoError(t, f.db.Create(stale).Error)
	require.NoError(t, f.db.Create(noEmail).Error)

	queued, err := f.sc.ReconciliationService.SweepReceipts(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	// уже стоит в очереди
	queued, err = f.sc.ReconciliationService.SweepReceipts(f.ctx, f.db)
	require.NoError(t, err)
	assert.Zero(t, queued)

	assert.Equal(t, models.TaskStatusPending, taskStatus(t, f, models.TaskReceipt, "pay_stale").Status)
}

func TestListTasks_Paginates(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"pay_a", "pay_b", "pay_c"} {
		require.NoError(t, f.sc.TaskQueue.Enqueue(f.ctx, f.db, models.TaskPaymentFailed, id, services.ReversalTask{}, nil))
	}

	page, err := f.sc.ReconciliationService.ListTasks(f.ctx, f.db, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Tasks, 2)

	page, err = f.sc.ReconciliationService.ListTasks(f.ctx, f.db, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 1)
}
