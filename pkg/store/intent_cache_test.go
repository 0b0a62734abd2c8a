package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestCacheIntentGeneratesID(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewIntentCacheRepository(client)

	mock.ExpectExec("INSERT INTO intent_cache").
		WillReturnResult(sqlmock.NewResult(1, 1))

	row := &IntentCache{
		SubscriptionID: "sub-1",
		Signature:      "0x" + "11",
		CreatedAt:      time.Now(),
	}
	err := repo.CacheIntent(context.Background(), row)
	require.NoError(t, err)
	require.NotEmpty(t, row.ID)
}

func TestGetCachedIntentNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewIntentCacheRepository(client)

	mock.ExpectQuery("SELECT id, subscription_id").
		WithArgs("sub-missing").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := repo.GetCachedIntent(context.Background(), "sub-missing")
	require.ErrorIs(t, err, ErrNotFound)
}
