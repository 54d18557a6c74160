package services_test

import (
	"sync"
	"testing"

	"helpinghands_backend/internal/events"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services"
	"helpinghands_backend/pkg/apperrors"
	"helpinghands_backend/test/helpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPayment_RecordsDonationAndAggregates(t *testing.T) {
	f := newFixture(t)
	user := helpers.CreateUser(t, f.db, models.UserRoleUser)
	request := helpers.CreateRequest(t, f.db, 1_000_000)

	orderID, paymentID, sig := f.checkout(t, 500)
	resp, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, 500, &request.ID), &user.ID)
	require.NoError(t, err)

	assert.True(t, resp.Donation.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "completed", resp.Donation.Status)
	assert.Regexp(t, `^TXN\d+[A-Z2-7]{16}$`, resp.Donation.TransactionID)

	d := f.donation(t, paymentID)
	assert.Equal(t, int64(50000), d.Amount)
	assert.Equal(t, models.DonationSourceVerify, d.Source)
	require.NotNil(t, d.UserID)
	assert.Equal(t, user.ID, *d.UserID)

	r := helpers.ReloadRequest(t, f.db, request.ID)
	assert.Equal(t, int64(50000), r.AmountRaised)
	assert.Equal(t, int64(1), r.DonorsCount)
	assert.Equal(t, 5, r.ProgressPercentage())

	u := helpers.ReloadUser(t, f.db, user.ID)
	assert.Equal(t, int64(1), u.TotalDonations)
	assert.Equal(t, int64(50000), u.TotalDonated)

	var order models.PaymentOrder
	require.NoError(t, f.db.Where("order_id = ?", orderID).First(&order).Error)
	assert.Equal(t, models.PaymentOrderPaid, order.Status)

	evts := f.mocks.Events.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.DonationCompleted, evts[0].Type)
	assert.Equal(t, paymentID, evts[0].PaymentID)

	helpers.WaitFor(t, func() bool { return len(f.mocks.Mail.Sent()) == 1 })
	mail := f.mocks.Mail.Sent()[0]
	assert.Equal(t, []string{"asha@test.com"}, mail.To)
	assert.Contains(t, mail.HTMLBody, d.TransactionID)
}

func TestVerifyPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	request := helpers.CreateRequest(t, f.db, 1_000_000)
	orderID, paymentID, sig := f.checkout(t, 250)
	req := f.verifyRequest(orderID, paymentID, sig, 250, &request.ID)

	first, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, req, nil)
	require.NoError(t, err)
	second, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, req, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Donation.ID, second.Donation.ID)
	assert.Equal(t, first.Donation.TransactionID, second.Donation.TransactionID)
	assert.Equal(t, int64(1), helpers.CountDonations(t, f.db))

	r := helpers.ReloadRequest(t, f.db, request.ID)
	assert.Equal(t, int64(25000), r.AmountRaised)
	assert.Equal(t, int64(1), r.DonorsCount)
	assert.Len(t, f.mocks.Events.Events(), 1)
}

func TestVerifyPayment_ConcurrentCallsRecordOnce(t *testing.T) {
	f := newFixture(t)
	request := helpers.CreateRequest(t, f.db, 1_000_000)
	orderID, paymentID, sig := f.checkout(t, 100)
	req := f.verifyRequest(orderID, paymentID, sig, 100, &request.ID)

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, req, nil)
			errs[i] = err
			if err == nil {
				ids[i] = resp.Donation.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), helpers.CountDonations(t, f.db))
	r := helpers.ReloadRequest(t, f.db, request.ID)
	assert.Equal(t, int64(10000), r.AmountRaised)
	assert.Equal(t, int64(1), r.DonorsCount)
}

func TestVerifyPayment_InvalidSignatureWritesNothing(t *testing.T) {
	f := newFixture(t)
	orderID, paymentID, _ := f.checkout(t, 100)
	bad := signedOrder(orderID, "pay_other")

	_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, bad, 100, nil), nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPaymentSignature))
	assert.Equal(t, int64(0), helpers.CountDonations(t, f.db))
}

func TestVerifyPayment_Validation(t *testing.T) {
	f := newFixture(t)
	orderID, paymentID, sig := f.checkout(t, 100)

	t.Run("below minimum", func(t *testing.T) {
		req := f.verifyRequest("order_nolocal", "pay_x", signedOrder("order_nolocal", "pay_x"), 99, nil)
		_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, req, nil)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, 400, appErr.HTTPCode)
	})

	t.Run("bad cause", func(t *testing.T) {
		req := f.verifyRequest(orderID, paymentID, sig, 100, nil)
		req.DonationData.Cause = "crypto"
		_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, req, nil)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)
	})
}

func TestVerifyPayment_UnknownRequestRecordedUnmatched(t *testing.T) {
	f := newFixture(t)
	orderID, paymentID, sig := f.checkout(t, 100)
	missing := "00000000-0000-0000-0000-000000000000"

	resp, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, 100, &missing), nil)
	require.NoError(t, err)
	assert.Equal(t, string(models.DonationStatusCompleted), resp.Donation.Status)

	d := f.donation(t, paymentID)
	assert.Nil(t, d.RequestID)
	require.NotNil(t, d.UnmatchedRequestID)
	assert.Equal(t, missing, *d.UnmatchedRequestID)
	assert.Equal(t, int64(1), helpers.CountDonations(t, f.db))

	// платеж записан, повторять нечего
	var tasks int64
	require.NoError(t, f.db.Model(&models.ReconciliationTask{}).Count(&tasks).Error)
	assert.Zero(t, tasks)
}

func TestVerifyPayment_OrderAmountIsAuthoritative(t *testing.T) {
	f := newFixture(t)
	orderID, paymentID, sig := f.checkout(t, 300)

	// клиент заявляет меньшую сумму, чем в выданном заказе
	_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, 100, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), f.donation(t, paymentID).Amount)
}

func TestVerifyPayment_UnknownUserRecordedAnonymously(t *testing.T) {
	f := newFixture(t)
	orderID, paymentID, sig := f.checkout(t, 100)
	ghost := "11111111-1111-1111-1111-111111111111"

	_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, 100, nil), &ghost)
	require.NoError(t, err)
	assert.Nil(t, f.donation(t, paymentID).UserID)
}

func TestReverseDonation_RefundThenFailedIsNoop(t *testing.T) {
	f := newFixture(t)
	user := helpers.CreateUser(t, f.db, models.UserRoleUser)
	request := helpers.CreateRequest(t, f.db, 1_000_000)
	orderID, paymentID, sig := f.checkout(t, 400)
	_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, 400, &request.ID), &user.ID)
	require.NoError(t, err)

	refundID := "rfnd_1"
	rev, err := f.sc.LedgerService.ReverseDonation(f.ctx, f.db, paymentID, models.DonationStatusRefunded, &refundID)
	require.NoError(t, err)
	assert.True(t, rev.Changed)
	assert.True(t, rev.AggregatesReversed)
	assert.False(t, rev.Clamped)

	d := f.donation(t, paymentID)
	assert.Equal(t, models.DonationStatusRefunded, d.Status)
	require.NotNil(t, d.RefundID)
	assert.Equal(t, "rfnd_1", *d.RefundID)

	r := helpers.ReloadRequest(t, f.db, request.ID)
	assert.Equal(t, int64(0), r.AmountRaised)
	assert.Equal(t, int64(0), r.DonorsCount)
	u := helpers.ReloadUser(t, f.db, user.ID)
	assert.Equal(t, int64(0), u.TotalDonations)
	assert.Equal(t, int64(0), u.TotalDonated)

	// повторный откат ничего не меняет
	rev, err = f.sc.LedgerService.ReverseDonation(f.ctx, f.db, paymentID, models.DonationStatusRefunded, &refundID)
	require.NoError(t, err)
	assert.False(t, rev.Changed)
	rev, err = f.sc.LedgerService.ReverseDonation(f.ctx, f.db, paymentID, models.DonationStatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, rev.Changed)
	assert.Equal(t, models.DonationStatusRefunded, f.donation(t, paymentID).Status)

	types := []events.EventType{}
	for _, e := range f.mocks.Events.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.EventType{events.DonationCompleted, events.DonationRefunded}, types)
}

func TestReverseDonation_ClampsAndFlags(t *testing.T) {
	f := newFixture(t)
	request := helpers.CreateRequest(t, f.db, 1_000_000)
	orderID, paymentID, sig := f.checkout(t, 200)
	_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, 200, &request.ID), nil)
	require.NoError(t, err)

	// агрегат разошелся с леджером
	require.NoError(t, f.db.Model(&models.Request{}).Where("id = ?", request.ID).Update("amount_raised", 5000).Error)

	rev, err := f.sc.LedgerService.ReverseDonation(f.ctx, f.db, paymentID, models.DonationStatusFailed, nil)
	require.NoError(t, err)
	assert.True(t, rev.Clamped)

	r := helpers.ReloadRequest(t, f.db, request.ID)
	assert.Equal(t, int64(0), r.AmountRaised)
	assert.True(t, r.NeedsReconciliation)
}

func TestReverseDonation_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.sc.LedgerService.ReverseDonation(f.ctx, f.db, "pay_missing", models.DonationStatusRefunded, nil)
	assert.ErrorIs(t, err, repositories.ErrDonationNotFound)

	_, err = f.sc.LedgerService.ReverseDonation(f.ctx, f.db, "pay_missing", models.DonationStatusCompleted, nil)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidStatus, appErr.Code)
}

func TestReplayRecord_WritesQueuedDonation(t *testing.T) {
	f := newFixture(t)
	request := helpers.CreateRequest(t, f.db, 1_000_000)

	task := services.RecordTask{
		OrderID:   "order_q",
		PaymentID: "pay_q",
		Source:    models.DonationSourceWebhook,
		Input: services.DonationInput{
			Amount:        15000,
			Currency:      "INR",
			Cause:         models.CauseFood,
			PaymentMethod: models.PaymentMethodCard,
			DonorName:     "Ravi",
			DonorEmail:    "ravi@test.com",
			RequestID:     &request.ID,
		},
	}
	require.NoError(t, f.sc.LedgerService.ReplayRecord(f.ctx, f.db, task))
	require.NoError(t, f.sc.LedgerService.ReplayRecord(f.ctx, f.db, task))

	assert.Equal(t, int64(1), helpers.CountDonations(t, f.db))
	assert.Equal(t, int64(15000), helpers.ReloadRequest(t, f.db, request.ID).AmountRaised)
}
