package services_test

import (
	"testing"

	"helpinghands_backend/internal/models"
	"helpinghands_backend/pkg/apperrors"
	"helpinghands_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetDonations(t *testing.T) {
	f := newFixture(t)
	request := helpers.CreateRequest(t, f.db, 1_000_000)
	user := helpers.CreateUser(t, f.db, models.UserRoleUser)
	for _, amount := range []int64{100, 250} {
		orderID, paymentID, sig := f.checkout(t, amount)
		_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, amount, &request.ID), &user.ID)
		require.NoError(t, err)
	}

	summary, err := f.sc.ResetService.ResetDonations(f.ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.DeletedDonations)
	assert.Equal(t, int64(1), summary.ResetUsers)
	assert.Equal(t, int64(1), summary.ResetRequests)

	assert.Equal(t, int64(0), helpers.CountDonations(t, f.db))
	r := helpers.ReloadRequest(t, f.db, request.ID)
	assert.Zero(t, r.AmountRaised)
	assert.Zero(t, r.DonorsCount)
	u := helpers.ReloadUser(t, f.db, user.ID)
	assert.Zero(t, u.TotalDonated)
	assert.Zero(t, u.TotalDonations)
}

func TestGetProgress(t *testing.T) {
	f := newFixture(t)
	request := helpers.CreateRequest(t, f.db, 200_000)
	orderID, paymentID, sig := f.checkout(t, 500)
	_, err := f.sc.LedgerService.VerifyPayment(f.ctx, f.db, f.verifyRequest(orderID, paymentID, sig, 500, &request.ID), nil)
	require.NoError(t, err)

	progress, err := f.sc.RequestService.GetProgress(f.ctx, f.db, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, progress.RequestID)
	assert.Equal(t, "2000", progress.AmountNeeded.String())
	assert.Equal(t, "500", progress.AmountRaised.String())
	assert.Equal(t, int64(1), progress.DonorsCount)
	assert.Equal(t, 25, progress.ProgressPercentage)
	assert.False(t, progress.NeedsReconciliation)

	_, err = f.sc.RequestService.GetProgress(f.ctx, f.db, "33333333-3333-3333-3333-333333333333")
	assert.True(t, apperrors.Is(err, apperrors.ErrRequestNotFound))
}
