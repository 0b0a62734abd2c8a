package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the signal insert_subscription and
// record_execution_and_advance use to detect collisions.
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// SubscriptionRepository persists subscriptions and drives the scheduler's
// due-set query and advancement transactions.
type SubscriptionRepository struct {
	client *Client
}

// NewSubscriptionRepository builds a repository bound to client.
func NewSubscriptionRepository(client *Client) *SubscriptionRepository {
	return &SubscriptionRepository{client: client}
}

const insertSubscriptionQuery = `
	INSERT INTO subscriptions (
		id, subscriber, merchant, token, amount, interval_seconds, start_time,
		max_payments, max_total_amount, expiry, nonce, status, executed_payments,
		total_paid, next_payment_due, failure_count, chain, created_at, updated_at,
		da_block, da_index
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
	)`

func insertSubscriptionArgs(row *Subscription) []any {
	return []any{
		row.ID, row.Subscriber, row.Merchant, row.Token, row.Amount, row.IntervalSeconds, row.StartTime,
		row.MaxPayments, row.MaxTotalAmount, row.Expiry, row.Nonce, row.Status, row.ExecutedPayments,
		row.TotalPaid, row.NextPaymentDue, row.FailureCount, row.Chain, row.CreatedAt, row.UpdatedAt,
		row.DABlock, row.DAIndex,
	}
}

// InsertSubscription inserts row. A primary-key or (subscriber, nonce)
// collision surfaces as ErrDuplicate.
func (r *SubscriptionRepository) InsertSubscription(ctx context.Context, row *Subscription) error {
	_, err := r.client.ExecContext(ctx, insertSubscriptionQuery, insertSubscriptionArgs(row)...)
	if err != nil {
		if uniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// InsertSubscriptionTx is InsertSubscription run inside tx, for callers that
// need it to share a transaction with another write (ingestion's intent
// cache insert).
func (r *SubscriptionRepository) InsertSubscriptionTx(ctx context.Context, tx *Tx, row *Subscription) error {
	_, err := tx.Tx().ExecContext(ctx, insertSubscriptionQuery, insertSubscriptionArgs(row)...)
	if err != nil {
		if uniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

const subscriptionColumns = `id, subscriber, merchant, token, amount, interval_seconds, start_time,
	max_payments, max_total_amount, expiry, nonce, status, executed_payments,
	total_paid, next_payment_due, failure_count, chain, created_at, updated_at,
	da_block, da_index`

func scanSubscription(row *sql.Row) (*Subscription, error) {
	s := &Subscription{}
	err := row.Scan(
		&s.ID, &s.Subscriber, &s.Merchant, &s.Token, &s.Amount, &s.IntervalSeconds, &s.StartTime,
		&s.MaxPayments, &s.MaxTotalAmount, &s.Expiry, &s.Nonce, &s.Status, &s.ExecutedPayments,
		&s.TotalPaid, &s.NextPaymentDue, &s.FailureCount, &s.Chain, &s.CreatedAt, &s.UpdatedAt,
		&s.DABlock, &s.DAIndex,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return s, nil
}

// GetSubscription fetches one subscription by id.
func (r *SubscriptionRepository) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	query := "SELECT " + subscriptionColumns + " FROM subscriptions WHERE id = $1"
	return scanSubscription(r.client.QueryRowContext(ctx, query, id))
}

// IsNonceUsed reports whether subscriber has already registered nonce.
func (r *SubscriptionRepository) IsNonceUsed(ctx context.Context, subscriber string, nonce int64) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM subscriptions WHERE subscriber = $1 AND nonce = $2)"
	if err := r.client.QueryRowContext(ctx, query, subscriber, nonce).Scan(&exists); err != nil {
		return false, fmt.Errorf("is nonce used: %w", err)
	}
	return exists, nil
}

// GetDueSubscriptions returns rows due for payment on one chain, ordered by
// next_payment_due ascending.
func (r *SubscriptionRepository) GetDueSubscriptions(ctx context.Context, f DueSubscriptionFilter) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1 AND chain = $2 AND expiry > $3
			AND executed_payments < max_payments AND next_payment_due <= $3
		ORDER BY next_payment_due ASC
		LIMIT $4 OFFSET $5`

	rows, err := r.client.QueryContext(ctx, query, StatusActive, f.Chain, f.Now, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("get due subscriptions: %w", err)
	}
	defer rows.Close()

	var results []*Subscription
	for rows.Next() {
		s := &Subscription{}
		if err := rows.Scan(
			&s.ID, &s.Subscriber, &s.Merchant, &s.Token, &s.Amount, &s.IntervalSeconds, &s.StartTime,
			&s.MaxPayments, &s.MaxTotalAmount, &s.Expiry, &s.Nonce, &s.Status, &s.ExecutedPayments,
			&s.TotalPaid, &s.NextPaymentDue, &s.FailureCount, &s.Chain, &s.CreatedAt, &s.UpdatedAt,
			&s.DABlock, &s.DAIndex,
		); err != nil {
			return nil, fmt.Errorf("scan due subscription: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// lockKey hashes a subscription id to an int32 advisory-lock key with 32-bit
// FNV-1a, computed client-side in place of Postgres's hashtext so the
// relayer doesn't depend on Postgres's internal hashtext implementation.
func lockKey(id string) int32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int32(h.Sum32())
}

// TryLockSubscription attempts a non-blocking, transaction-scoped row lock
// on id. The lock is released automatically when tx commits or rolls back.
// Returns ErrLockHeld if contended.
func (r *SubscriptionRepository) TryLockSubscription(ctx context.Context, tx *Tx, id string) error {
	var acquired bool
	err := tx.tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1)", lockKey(id)).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("try lock subscription: %w", err)
	}
	if !acquired {
		return ErrLockHeld
	}
	return nil
}

// RecordExecutionAndAdvance inserts execution and advances subscription id's
// counters in one transaction. A duplicate (subscription_id, payment_number)
// surfaces as ErrDuplicateExecution so callers can treat it as idempotent
// success rather than a hard failure.
func (r *SubscriptionRepository) RecordExecutionAndAdvance(ctx context.Context, execution *Execution, id string, newExecutedPayments int64, newNextDue time.Time, maxPayments int64) error {
	tx, err := r.client.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	insertQuery := `
		INSERT INTO executions (
			id, subscription_id, payment_number, tx_hash, block_number, gas_used,
			gas_price, protocol_fee, payment_amount, chain, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = tx.tx.ExecContext(ctx, insertQuery,
		execution.ID, execution.SubscriptionID, execution.PaymentNumber, execution.TxHash,
		execution.BlockNumber, execution.GasUsed, execution.GasPrice, execution.ProtocolFee,
		execution.PaymentAmount, execution.Chain, execution.ExecutedAt,
	)
	if err != nil {
		if uniqueViolation(err) {
			return ErrDuplicateExecution
		}
		return fmt.Errorf("insert execution: %w", err)
	}

	newStatus := StatusActive
	if newExecutedPayments == maxPayments {
		newStatus = StatusCompleted
	}

	updateQuery := `
		UPDATE subscriptions
		SET executed_payments = $1,
			total_paid = (total_paid::numeric + $2::numeric)::text,
			next_payment_due = $3,
			failure_count = 0,
			status = $4,
			updated_at = $5
		WHERE id = $6`
	_, err = tx.tx.ExecContext(ctx, updateQuery,
		newExecutedPayments, execution.PaymentAmount, newNextDue, newStatus, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("advance subscription: %w", err)
	}

	return tx.Commit()
}

// RecordFailure increments failure_count for id. If the new count exceeds
// 3, status transitions to PAUSED in the same update.
func (r *SubscriptionRepository) RecordFailure(ctx context.Context, id string, newFailureCount int64) error {
	var status Status = StatusActive
	query := `UPDATE subscriptions SET failure_count = $1, updated_at = $2 WHERE id = $3`
	if newFailureCount > 3 {
		status = StatusPaused
		query = `UPDATE subscriptions SET failure_count = $1, updated_at = $2, status = $4 WHERE id = $3`
		_, err := r.client.ExecContext(ctx, query, newFailureCount, time.Now(), id, status)
		if err != nil {
			return fmt.Errorf("record failure: %w", err)
		}
		return nil
	}

	_, err := r.client.ExecContext(ctx, query, newFailureCount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// SetStatus transitions id from its current status to to, gated by the
// transition DAG in CanTransition.
func (r *SubscriptionRepository) SetStatus(ctx context.Context, id string, to Status) error {
	current, err := r.GetSubscription(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == to {
		return nil
	}
	if !CanTransition(current.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	_, err = r.client.ExecContext(ctx,
		"UPDATE subscriptions SET status = $1, updated_at = $2 WHERE id = $3",
		to, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}
