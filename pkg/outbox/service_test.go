package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	logg := logger.New(logger.Options{ServiceName: "test"})
	ctx := logg.WithTraceID(context.Background(), "trace-1")
	orderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventOrderPaymentConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]string{"order_id": orderID.String()},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, "trace-1", envelope.TraceID)
	assert.NotEmpty(t, envelope.EventID)
	assert.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderPaymentConfirmed})
	assert.Error(t, err)

	db := dbtest.Open(t)
	err = svc.Emit(context.Background(), db, DomainEvent{EventType: "order.unknown"})
	assert.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	first := models.OutboxEvent{EventType: enums.EventSubscriptionActivated, AggregateType: enums.AggregateSubscription, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventSubscriptionPaused, AggregateType: enums.AggregateSubscription, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Insert(db, first))
	require.NoError(t, repo.Insert(db, second))

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkTerminalTx(db, rows[1].ID, assert.AnError, 3))

	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, time.Now().Add(time.Hour), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestRepositoryMarkFailedIncrementsAttempts(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventProductStockLow, AggregateType: enums.AggregateProduct, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Insert(db, row))
	require.NoError(t, repo.MarkFailedTx(db, row.ID, assert.AnError))
	require.NoError(t, repo.MarkFailedTx(db, row.ID, assert.AnError))

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, 2, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, assert.AnError.Error(), *stored.LastError)
}

func TestDLQRepository(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewDLQRepository(db)

	eventID := uuid.New()
	msg := "boom"
	require.NoError(t, repo.InsertTx(db, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderPaymentDeclined,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))

	found, err := repo.ForEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, found[0].ErrorReason)
	assert.False(t, found[0].FailedAt.IsZero())

	missing, err := repo.ForEvent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestDLQRepositoryCapsErrorMessage(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewDLQRepository(db)

	eventID := uuid.New()
	long := strings.Repeat("x", maxLastErrorLen+100)
	require.NoError(t, repo.InsertTx(db, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventProductStockLow,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &long,
	}))

	found, err := repo.ForEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.NotNil(t, found[0].ErrorMessage)
	assert.LessOrEqual(t, len(*found[0].ErrorMessage), maxLastErrorLen)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"version":1,"event_id":"e-1","data":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "e-1", env.EventID)

	_, err = DecodeEnvelope([]byte(`{"version":1,"event_id":"e-1","data":null}`))
	assert.ErrorIs(t, err, errEmptyData)

	_, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}
