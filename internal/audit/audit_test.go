package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryRecordAndList(t *testing.T) {
	repo, err := NewRepository(dbtest.Open(t), 1)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, Entry{
		TraceID:    "trace-1",
		Provider:   enums.ProviderPix,
		Source:     enums.SourceWebhook,
		Event:      "order.confirm",
		EntityType: enums.EntityOrder,
		EntityID:   "order-1",
		OK:         true,
		Payload:    map[string]string{"txid": "abc"},
	}))
	require.NoError(t, repo.Record(ctx, Entry{
		TraceID:          "trace-2",
		Provider:         enums.ProviderPix,
		Source:           enums.SourcePoll,
		Event:            "order.confirm",
		EntityType:       enums.EntityOrder,
		EntityID:         "order-1",
		OK:               true,
		AlreadyConfirmed: true,
	}))
	require.NoError(t, repo.Record(ctx, Entry{
		TraceID:  "trace-3",
		Provider: enums.ProviderStripe,
		Source:   enums.SourceWebhook,
		Event:    "card.unknown",
		Err:      errors.New("no entity"),
	}))

	rows, err := repo.ListByEntity(ctx, enums.EntityOrder, "order-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Less(t, rows[0].ID, rows[1].ID)
	assert.False(t, rows[0].AlreadyConfirmed)
	assert.True(t, rows[1].AlreadyConfirmed)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rows[0].Payload, &payload))
	assert.Equal(t, "abc", payload["txid"])
}

func TestNewRepositoryRejectsBadNode(t *testing.T) {
	_, err := NewRepository(nil, 5000)
	assert.Error(t, err)
}

func TestNopSink(t *testing.T) {
	assert.NoError(t, NopSink{}.Record(context.Background(), Entry{}))
}

func TestRecordStoresErrorSummary(t *testing.T) {
	db := dbtest.Open(t)
	repo, err := NewRepository(db, 2)
	require.NoError(t, err)

	cause := pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "query charge")
	require.NoError(t, repo.Record(context.Background(), Entry{
		Provider:   enums.ProviderPix,
		Source:     enums.SourcePoll,
		Event:      "status.query",
		EntityType: enums.EntityOrder,
		EntityID:   "order-9",
		Err:        cause,
	}))

	rows, err := repo.ListByEntity(context.Background(), enums.EntityOrder, "order-9")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Error)
	assert.Equal(t, pkgerrors.Dump(cause).Summary(), *rows[0].Error)
	assert.Contains(t, *rows[0].Error, "["+string(pkgerrors.CodeDependency)+"]")
}
