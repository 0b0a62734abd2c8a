package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Client{db: db}, mock
}

func TestInsertSubscriptionDuplicateNonce(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewSubscriptionRepository(client)

	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	row := &Subscription{ID: "0x" + "ab", Subscriber: "0x1", Nonce: 1}
	err := repo.InsertSubscription(context.Background(), row)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestIsNonceUsed(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewSubscriptionRepository(client)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("0xabc", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	used, err := repo.IsNonceUsed(context.Background(), "0xabc", 5)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusActive, StatusCompleted))
	assert.True(t, CanTransition(StatusActive, StatusPaused))
	assert.True(t, CanTransition(StatusPaused, StatusActive))
	assert.False(t, CanTransition(StatusCompleted, StatusActive))
	assert.False(t, CanTransition(StatusCancelled, StatusActive))
}

func TestRecordFailureThresholdPauses(t *testing.T) {
	client, mock := newMockClient(t)
	repo := NewSubscriptionRepository(client)

	mock.ExpectExec("UPDATE subscriptions SET failure_count").
		WithArgs(int64(4), sqlmock.AnyArg(), "sub-1", StatusPaused).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordFailure(context.Background(), "sub-1", 4)
	require.NoError(t, err)
}

func TestLockKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, lockKey("sub-1"), lockKey("sub-1"))
	assert.NotEqual(t, lockKey("sub-1"), lockKey("sub-2"))
}

func TestUniqueViolationDetection(t *testing.T) {
	assert.True(t, uniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, uniqueViolation(&pq.Error{Code: "42601"}))
	assert.False(t, uniqueViolation(nil))
}
