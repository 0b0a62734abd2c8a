// Package scheduler drives recurring payments forward: it discovers due
// subscriptions, validates them against the live chain, submits execution
// transactions and records outcomes, all under cluster- and row-scoped
// advisory locks.
package scheduler

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/metrics"
	"github.com/aurum-protocol/relayer/pkg/store"
)

const (
	batchSize           = 100
	maxProcessedPerTick = 1000
	tickDeadline        = 300 * time.Second
	failureThreshold    = 3
)

// DAFetcher retrieves a previously-submitted intent from the data-availability
// layer so the scheduler can repopulate a missing intent cache entry.
type DAFetcher interface {
	FetchIntent(ctx context.Context, daBlock, daIndex int64) (*store.IntentCache, error)
}

// Scheduler runs the periodic tick protocol for one chain tag at a time.
type Scheduler struct {
	client  *store.Client
	subs    *store.SubscriptionRepository
	intents *store.IntentCacheRepository
	chains  *chain.Registry
	da      DAFetcher
	metrics *metrics.Metrics
	logger  *log.Logger
}

// New builds a Scheduler over the given store and chain registry. da may be
// nil when no DA collaborator is configured. m may be nil to run without
// instrumentation, as scheduler tests do.
func New(client *store.Client, chains *chain.Registry, da DAFetcher, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		client:  client,
		subs:    store.NewSubscriptionRepository(client),
		intents: store.NewIntentCacheRepository(client),
		chains:  chains,
		da:      da,
		metrics: m,
		logger:  log.New(log.Writer(), "[scheduler] ", log.LstdFlags),
	}
}

// Tick runs one pass of the tick protocol across every registered chain.
// It is a no-op if another instance currently holds the cluster lock.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	if s.metrics != nil {
		defer func() { s.metrics.TickDuration.Observe(time.Since(start).Seconds()) }()
	}

	acquired, err := s.client.TryAcquireClusterLock(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		s.logger.Println("cluster tick lock held elsewhere, skipping")
		return nil
	}
	defer func() {
		if err := s.client.ReleaseClusterLock(context.Background()); err != nil {
			s.logger.Printf("failed to release cluster lock: %v", err)
		}
	}()

	deadline := time.Now().Add(tickDeadline)
	tickCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	totalProcessed := 0
	for _, tag := range s.chains.Tags() {
		gateway, err := s.chains.Get(tag)
		if err != nil {
			s.logger.Printf("chain %s unavailable: %v", tag, err)
			continue
		}
		n, err := s.processChain(tickCtx, gateway, totalProcessed, deadline)
		if err != nil {
			s.logger.Printf("chain %s batch loop error: %v", tag, err)
		}
		totalProcessed += n
		if totalProcessed >= maxProcessedPerTick {
			s.logger.Println("reached per-tick processing ceiling, stopping")
			break
		}
	}

	return nil
}

func (s *Scheduler) processChain(ctx context.Context, gateway chain.Gateway, alreadyProcessed int, deadline time.Time) (int, error) {
	processed := 0
	offset := 0

	for {
		if time.Now().After(deadline) {
			s.logger.Println("tick deadline reached, stopping batch loop")
			return processed, nil
		}
		if alreadyProcessed+processed >= maxProcessedPerTick {
			return processed, nil
		}

		due, err := s.subs.GetDueSubscriptions(ctx, store.DueSubscriptionFilter{
			Chain:  gateway.Tag(),
			Now:    time.Now(),
			Limit:  batchSize,
			Offset: offset,
		})
		if err != nil {
			return processed, err
		}
		if len(due) == 0 {
			return processed, nil
		}
		if s.metrics != nil {
			s.metrics.DueSubscriptions.Set(float64(len(due)))
		}

		for _, sub := range due {
			if err := s.processOne(ctx, sub, gateway); err != nil {
				s.logger.Printf("subscription %s: %v", sub.ID, err)
			}
			processed++
		}

		offset += batchSize
	}
}

// processOne runs steps a-g of the per-subscription tick protocol.
func (s *Scheduler) processOne(ctx context.Context, sub *store.Subscription, gateway chain.Gateway) error {
	if len(sub.ID) > maxSubscriptionIDLength {
		s.logger.Printf("skipping subscription with oversized id (%d chars)", len(sub.ID))
		return nil
	}

	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.subs.TryLockSubscription(ctx, tx, sub.ID); err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return nil
		}
		return err
	}

	if err := s.ensureIntentCached(ctx, sub); err != nil {
		s.logger.Printf("subscription %s: intent cache refresh failed: %v", sub.ID, err)
	}

	outcome, err := ValidatePayment(ctx, sub, gateway)
	if err != nil {
		return s.handleValidationFailure(ctx, sub, err)
	}

	switch outcome {
	case Valid:
		return s.executeAndAdvance(ctx, sub, gateway)
	case NotDueOutcome:
		return nil
	case InsufficientBalanceOutcome:
		return s.recordFailure(ctx, sub)
	case InsufficientAllowanceOutcome:
		return s.recordFailure(ctx, sub)
	default:
		return nil
	}
}

func (s *Scheduler) ensureIntentCached(ctx context.Context, sub *store.Subscription) error {
	if _, err := s.intents.GetCachedIntent(ctx, sub.ID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if s.da == nil || sub.DABlock == nil || sub.DAIndex == nil {
		return nil
	}

	cached, err := s.da.FetchIntent(ctx, *sub.DABlock, *sub.DAIndex)
	if err != nil {
		return err
	}
	if cached == nil {
		return nil
	}
	cached.SubscriptionID = sub.ID
	return s.intents.CacheIntent(ctx, cached)
}

func (s *Scheduler) executeAndAdvance(ctx context.Context, sub *store.Subscription, gateway chain.Gateway) error {
	execution, err := ExecuteWithRetry(ctx, sub, gateway)
	if err != nil {
		return s.handleValidationFailure(ctx, sub, err)
	}

	newExecuted := sub.ExecutedPayments + 1
	newNextDue := sub.NextPaymentDue.Add(time.Duration(sub.IntervalSeconds) * time.Second)

	row := &store.Execution{
		SubscriptionID: sub.ID,
		PaymentNumber:  int64(execution.PaymentNumber),
		TxHash:         execution.TxHash,
		BlockNumber:    int64(execution.BlockNumber),
		GasUsed:        int64(execution.GasUsed),
		GasPrice:       execution.GasPrice.String(),
		ProtocolFee:    execution.ProtocolFee.String(),
		PaymentAmount:  execution.PaymentAmount.String(),
		Chain:          sub.Chain,
		ExecutedAt:     time.Now(),
	}

	err = s.subs.RecordExecutionAndAdvance(ctx, row, sub.ID, newExecuted, newNextDue, sub.MaxPayments)
	if errors.Is(err, store.ErrDuplicateExecution) {
		s.logger.Printf("subscription %s: execution already recorded, treating as success", sub.ID)
		s.recordOutcome("duplicate")
		return nil
	}
	if err != nil {
		s.recordOutcome("failure")
		return err
	}
	s.recordOutcome("success")
	return nil
}

func (s *Scheduler) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.Executions.WithLabelValues(outcome).Inc()
	}
}

// handleValidationFailure records a failure for sub. cause is logged by the
// caller; every non-nil validation or execution error reaching here advances
// the failure counter (and pauses the subscription once it crosses the
// threshold), per the tick protocol's step g.
func (s *Scheduler) handleValidationFailure(ctx context.Context, sub *store.Subscription, cause error) error {
	if s.metrics != nil && errors.Is(cause, ErrChain) {
		s.metrics.RPCErrors.WithLabelValues(sub.Chain, "validate_or_execute").Inc()
	}
	return s.recordFailure(ctx, sub)
}

func (s *Scheduler) recordFailure(ctx context.Context, sub *store.Subscription) error {
	if s.metrics != nil {
		s.metrics.Failures.Inc()
	}
	newCount := sub.FailureCount
	if newCount < math.MaxInt64 {
		newCount++
	}
	return s.subs.RecordFailure(ctx, sub.ID, newCount)
}
