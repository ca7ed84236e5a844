package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func seedSubscription(t *testing.T, repo Repository, mutate func(*models.Subscription)) *models.Subscription {
	t.Helper()
	freq := enums.FrequencyWeekly
	sub := &models.Subscription{
		Frequency:       &freq,
		DeliveryWeekday: strPtr("segunda"),
		PaymentMethod:   enums.PaymentMethodInstant,
		PixTxID:         strPtr(uuid.NewString()),
		TotalAmount:     decimal.RequireFromString("99.90"),
		Items: []models.SubscriptionItem{
			{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("99.90")},
		},
	}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, repo.Create(context.Background(), sub))
	return sub
}

func TestActivateOnlyFromPaused(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, nil)

	first := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	ok, err := repo.Activate(ctx, sub.ID, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Activate(ctx, sub.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
	require.NotNil(t, stored.ActivatedAt)
	assert.True(t, stored.ActivatedAt.Equal(first))
	assert.Len(t, stored.Items, 1)
}

func TestActivateKeepsFirstActivation(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, nil)

	first := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	_, err := repo.Activate(ctx, sub.ID, first)
	require.NoError(t, err)
	_, err = repo.Pause(ctx, sub.ID, nil)
	require.NoError(t, err)

	ok, err := repo.Activate(ctx, sub.ID, first.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, stored.ActivatedAt.Equal(first))
}

func TestCancelledSubscriptionCannotBeActivatedOrPaused(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, nil)

	ok, err := repo.Cancel(ctx, sub.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Activate(ctx, sub.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	failed := enums.RecurrenceChargeFailed
	ok, err = repo.Pause(ctx, sub.ID, &failed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Cancel(ctx, sub.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkStockReservedOnce(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, nil)

	ok, err := repo.MarkStockReserved(ctx, sub.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkStockReserved(ctx, sub.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateRecurrenceReportsChange(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, func(s *models.Subscription) {
		s.PixRecurrenceID = strPtr("RR123")
	})

	ok, err := repo.UpdateRecurrence(ctx, sub.ID, enums.RecurrenceActive, true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateRecurrence(ctx, sub.ID, enums.RecurrenceActive, true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateRecurrence(ctx, sub.ID, enums.RecurrenceRejected, false)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindByRecurrenceID(ctx, "RR123")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.RecurrenceAuthorized)
	require.NotNil(t, stored.RecurrenceStatus)
	assert.Equal(t, enums.RecurrenceRejected, *stored.RecurrenceStatus)
}

func TestPauseWithRecurrenceStatus(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, nil)

	ok, err := repo.Pause(ctx, sub.ID, nil)
	require.NoError(t, err)
	assert.False(t, ok, "already paused")

	failed := enums.RecurrenceChargeFailed
	ok, err = repo.Pause(ctx, sub.ID, &failed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Pause(ctx, sub.ID, &failed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceChargeOnlyWhilePaused(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, func(s *models.Subscription) {
		s.PixTxID = strPtr("old-tx")
	})

	ok, err := repo.ReplaceCharge(ctx, sub.ID, "old-tx", "new-tx", "copia")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Activate(ctx, sub.ID, time.Now())
	require.NoError(t, err)
	ok, err = repo.ReplaceCharge(ctx, sub.ID, "new-tx", "newer-tx", "copia")
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByPixTxID(ctx, "new-tx")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sub.ID, found.ID)
}

func TestInsertDeliveriesSkipsExistingDates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, nil)

	mk := func(day int) models.SubscriptionDelivery {
		return models.SubscriptionDelivery{
			SubscriptionID: sub.ID,
			DeliveryDate:   *models.NewDate(time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC)),
			TotalAmount:    sub.TotalAmount,
			PaymentStatus:  enums.PaymentStatusConfirmed,
			DeliveryStatus: enums.DeliveryStatusAwaiting,
		}
	}

	n, err := repo.InsertDeliveries(ctx, []models.SubscriptionDelivery{mk(12), mk(19)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.InsertDeliveries(ctx, []models.SubscriptionDelivery{mk(19), mk(26)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	seen, err := repo.HasDeliveriesForCharge(ctx, sub.ID, "cycle-1")
	require.NoError(t, err)
	assert.False(t, seen)
	tagged := mk(26)
	tagged.DeliveryDate = *models.NewDate(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	tagged.ChargeReference = strPtr("cycle-1")
	_, err = repo.InsertDeliveries(ctx, []models.SubscriptionDelivery{tagged})
	require.NoError(t, err)
	seen, err = repo.HasDeliveriesForCharge(ctx, sub.ID, "cycle-1")
	require.NoError(t, err)
	assert.True(t, seen)

	n, err = repo.InsertDeliveries(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err := repo.ListDeliveries(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2026-01-12", models.DateString(&rows[0].DeliveryDate))
	assert.Equal(t, "2026-01-26", models.DateString(&rows[2].DeliveryDate))
	assert.Equal(t, "2026-02-02", models.DateString(&rows[3].DeliveryDate))
}

func TestNextDeliveryDateAndCardSubscription(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	sub := seedSubscription(t, repo, func(s *models.Subscription) {
		s.PaymentMethod = enums.PaymentMethodCard
		s.PixTxID = nil
		s.CardSessionID = strPtr("cs_test_1")
	})

	require.NoError(t, repo.SetNextDeliveryDate(ctx, sub.ID, models.NewDate(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, repo.SetCardSubscriptionID(ctx, sub.ID, "sub_123"))

	found, err := repo.FindByCardSubscriptionID(ctx, "sub_123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "2026-01-12", models.DateString(found.NextDeliveryDate))

	found, err = repo.FindByCardSessionID(ctx, "cs_test_1")
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := repo.FindByCardSubscriptionID(ctx, "sub_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListAwaitingPayment(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	paused := seedSubscription(t, repo, nil)
	active := seedSubscription(t, repo, nil)
	_, err := repo.Activate(ctx, active.ID, time.Now())
	require.NoError(t, err)
	seedSubscription(t, repo, func(s *models.Subscription) {
		s.PaymentMethod = enums.PaymentMethodCard
		s.PixTxID = nil
	})

	rows, err := repo.ListAwaitingPayment(ctx, time.Now().Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, paused.ID, rows[0].ID)
}
