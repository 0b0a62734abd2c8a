// Package ingestion implements the entry point that turns a signed
// subscription intent into a durable subscription: signature and parameter
// validation, replay/duplicate checks, best-effort data-availability
// archival, then a single transactional write of the intent cache and
// subscription rows.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/config"
	"github.com/aurum-protocol/relayer/pkg/da"
	"github.com/aurum-protocol/relayer/pkg/intent"
	"github.com/aurum-protocol/relayer/pkg/store"
)

// DASubmitter publishes a signed intent to the data-availability layer.
// Satisfied by *da.Client.
type DASubmitter interface {
	SubmitIntent(ctx context.Context, in intent.SubscriptionIntent, signature, relayer string, chainID uint64) (*da.SubmissionResult, error)
}

// Result is what a successful Ingest returns to the API layer.
type Result struct {
	SubscriptionID string
	DABlock        int64
	DAIndex        int64
	Status         store.Status
}

// Service wires the intent validator, chain registry, DA client and store
// together behind the six-step ingestion sequence.
type Service struct {
	subs        *store.SubscriptionRepository
	intents     *store.IntentCacheRepository
	client      *store.Client
	chains      *chain.Registry
	da          DASubmitter
	chainTag    string
	managerAddr string
	relayerAddr string
	logger      *log.Logger
}

// New builds a Service. chainTag selects which registered chain new
// intents are verified and registered against (the relayer supports
// executing payments on several chains, but a given intent is signed for
// exactly one).
func New(cfg *config.Config, client *store.Client, chains *chain.Registry, dac DASubmitter, chainTag string) *Service {
	return &Service{
		subs:        store.NewSubscriptionRepository(client),
		intents:     store.NewIntentCacheRepository(client),
		client:      client,
		chains:      chains,
		da:          dac,
		chainTag:    chainTag,
		managerAddr: cfg.Chains[chainTag].SubscriptionManagerAddr,
		relayerAddr: cfg.RelayerAddress,
		logger:      log.New(log.Writer(), "[ingestion] ", log.LstdFlags),
	}
}

// Ingest runs the six-step ingestion sequence for one signed intent and
// returns the resulting subscription's identifiers. Steps 5-6 share one
// database transaction; any failure there rolls both writes back.
func (s *Service) Ingest(ctx context.Context, in intent.SubscriptionIntent, signatureHex string) (*Result, error) {
	now := time.Now()

	// step 1: intent validator - parameter sanity, then signature.
	parsed, err := intent.Validate(in, now)
	if err != nil {
		return nil, err
	}

	gateway, err := s.chains.Get(s.chainTag)
	if err != nil {
		return nil, fmt.Errorf("ingestion: chain %s unavailable: %w", s.chainTag, err)
	}

	verified, err := intent.Verify(*parsed, signatureHex, gateway.ChainID(), s.managerAddr)
	if err != nil {
		return nil, err
	}
	subscriptionID := verified.SubscriptionID

	s.logger.Printf("validated intent for subscriber %s, subscription id %s", parsed.Subscriber, subscriptionID)

	// step 2: nonce replay check.
	nonceUsed, err := s.subs.IsNonceUsed(ctx, parsed.Subscriber, int64(in.Nonce))
	if err != nil {
		return nil, err
	}
	if nonceUsed {
		return nil, ErrNonceUsed
	}

	// step 3: subscription id uniqueness.
	if _, err := s.subs.GetSubscription(ctx, subscriptionID); err == nil {
		return nil, store.ErrDuplicate
	} else if err != store.ErrNotFound {
		return nil, err
	}

	// step 4: best-effort DA submission; failure aborts ingestion since the
	// block/extrinsic references are what gets persisted.
	submission, err := s.da.SubmitIntent(ctx, in, signatureHex, s.relayerAddr, gateway.ChainID().Uint64())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDASubmissionFailed, err)
	}

	startTime := time.Unix(int64(in.StartTime), 0).UTC()
	daBlock, daIndex := submission.BlockNumber, submission.ExtrinsicIndex

	intentRow := &store.IntentCache{
		SubscriptionID:  subscriptionID,
		Signature:       signatureHex,
		Subscriber:      parsed.Subscriber,
		Merchant:        parsed.Merchant,
		Token:           parsed.Token,
		Amount:          parsed.Amount.String(),
		IntervalSeconds: int64(in.Interval),
		StartTime:       int64(in.StartTime),
		MaxPayments:     int64(in.MaxPayments),
		MaxTotalAmount:  parsed.MaxTotalAmount.String(),
		Expiry:          int64(in.Expiry),
		Nonce:           int64(in.Nonce),
		Chain:           s.chainTag,
		CreatedAt:       now,
	}

	subscriptionRow := &store.Subscription{
		ID:               subscriptionID,
		Subscriber:       parsed.Subscriber,
		Merchant:         parsed.Merchant,
		Token:            parsed.Token,
		Amount:           parsed.Amount.String(),
		IntervalSeconds:  int64(in.Interval),
		StartTime:        int64(in.StartTime),
		MaxPayments:      int64(in.MaxPayments),
		MaxTotalAmount:   parsed.MaxTotalAmount.String(),
		Expiry:           int64(in.Expiry),
		Nonce:            int64(in.Nonce),
		Status:           store.StatusActive,
		ExecutedPayments: 0,
		TotalPaid:        "0",
		NextPaymentDue:   startTime,
		FailureCount:     0,
		Chain:            s.chainTag,
		CreatedAt:        now,
		UpdatedAt:        now,
		DABlock:          &daBlock,
		DAIndex:          &daIndex,
	}

	// steps 5-6: one transaction.
	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.intents.CacheIntentTx(ctx, tx, intentRow); err != nil {
		return nil, err
	}
	if err := s.subs.InsertSubscriptionTx(ctx, tx, subscriptionRow); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ingestion: commit: %w", err)
	}

	s.logger.Printf("created subscription %s (da block %d, extrinsic %d)", subscriptionID, daBlock, daIndex)

	return &Result{
		SubscriptionID: subscriptionID,
		DABlock:        daBlock,
		DAIndex:        daIndex,
		Status:         store.StatusActive,
	}, nil
}
