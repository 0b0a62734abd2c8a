package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// IntentCacheRepository persists the signed intents behind subscriptions.
type IntentCacheRepository struct {
	client *Client
}

// NewIntentCacheRepository builds a repository bound to client.
func NewIntentCacheRepository(client *Client) *IntentCacheRepository {
	return &IntentCacheRepository{client: client}
}

const cacheIntentQuery = `
	INSERT INTO intent_cache (
		id, subscription_id, signature, subscriber, merchant, token, amount,
		interval_seconds, start_time, max_payments, max_total_amount, expiry,
		nonce, chain, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (subscription_id, signature) DO UPDATE SET
		subscriber = EXCLUDED.subscriber,
		merchant = EXCLUDED.merchant,
		token = EXCLUDED.token,
		amount = EXCLUDED.amount,
		interval_seconds = EXCLUDED.interval_seconds,
		start_time = EXCLUDED.start_time,
		max_payments = EXCLUDED.max_payments,
		max_total_amount = EXCLUDED.max_total_amount,
		expiry = EXCLUDED.expiry,
		nonce = EXCLUDED.nonce,
		chain = EXCLUDED.chain`

func cacheIntentArgs(row *IntentCache) []any {
	return []any{
		row.ID, row.SubscriptionID, row.Signature, row.Subscriber, row.Merchant, row.Token, row.Amount,
		row.IntervalSeconds, row.StartTime, row.MaxPayments, row.MaxTotalAmount, row.Expiry,
		row.Nonce, row.Chain, row.CreatedAt,
	}
}

// CacheIntent upserts row, keyed on (subscription_id, signature).
func (r *IntentCacheRepository) CacheIntent(ctx context.Context, row *IntentCache) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if _, err := r.client.ExecContext(ctx, cacheIntentQuery, cacheIntentArgs(row)...); err != nil {
		return fmt.Errorf("cache intent: %w", err)
	}
	return nil
}

// CacheIntentTx is CacheIntent run inside tx, for callers that need it to
// share a transaction with another write (ingestion's subscription insert).
func (r *IntentCacheRepository) CacheIntentTx(ctx context.Context, tx *Tx, row *IntentCache) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if _, err := tx.Tx().ExecContext(ctx, cacheIntentQuery, cacheIntentArgs(row)...); err != nil {
		return fmt.Errorf("cache intent: %w", err)
	}
	return nil
}

// GetCachedIntent returns the cached intent for subscriptionID, if any.
func (r *IntentCacheRepository) GetCachedIntent(ctx context.Context, subscriptionID string) (*IntentCache, error) {
	query := `
		SELECT id, subscription_id, signature, subscriber, merchant, token, amount,
			interval_seconds, start_time, max_payments, max_total_amount, expiry,
			nonce, chain, created_at
		FROM intent_cache
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	row := &IntentCache{}
	err := r.client.QueryRowContext(ctx, query, subscriptionID).Scan(
		&row.ID, &row.SubscriptionID, &row.Signature, &row.Subscriber, &row.Merchant, &row.Token, &row.Amount,
		&row.IntervalSeconds, &row.StartTime, &row.MaxPayments, &row.MaxTotalAmount, &row.Expiry,
		&row.Nonce, &row.Chain, &row.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached intent: %w", err)
	}
	return row, nil
}
