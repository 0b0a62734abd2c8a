package scheduler

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/store"
)

const (
	maxExecutionAttempts  = 3
	executionAttemptTimeout = 120 * time.Second
	baseRetryDelay        = 30 * time.Second
	protocolFeeBps        = 50 // 0.5%, basis points
)

// Execution is the outcome of a successful on-chain payment submission,
// ready to be persisted by RecordExecutionAndAdvance.
type Execution struct {
	TxHash        string
	BlockNumber   uint64
	GasUsed       uint64
	GasPrice      *big.Int
	ProtocolFee   *big.Int
	PaymentAmount *big.Int
	PaymentNumber uint64
}

// fixedStepBackoff reproduces the spec's 30s * 2^(attempt-1) + jitter[0,25%]
// schedule, since cenkalti/backoff's ExponentialBackOff multiplies by a
// configurable factor rather than a clean power-of-two doubling.
type fixedStepBackoff struct {
	attempt int
}

func (b *fixedStepBackoff) NextBackOff() time.Duration {
	b.attempt++
	step := baseRetryDelay * time.Duration(1<<uint(b.attempt-1))
	jitter := time.Duration(rand.Int63n(int64(step) / 4))
	return step + jitter
}

func (b *fixedStepBackoff) Reset() { b.attempt = 0 }

// retriable reports whether err should trigger another attempt, per the
// taxonomy: RpcFailure and InsufficientGas always retry; TransactionFailed
// retries unless its message names a nonce, insufficiency or revert
// problem; ContractRevert never retries.
func retriable(err error) bool {
	switch {
	case err == nil:
		return false
	case isErr(err, chain.ErrContractRevert):
		return false
	case isErr(err, chain.ErrRpcFailure), isErr(err, chain.ErrInsufficientGas):
		return true
	case isErr(err, chain.ErrTransactionFailed):
		msg := strings.ToLower(err.Error())
		return !strings.Contains(msg, "nonce") && !strings.Contains(msg, "insufficient") && !strings.Contains(msg, "revert")
	default:
		return false
	}
}

func isErr(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ExecuteWithRetry submits the subscription's payment, retrying transient
// failures up to maxExecutionAttempts times with the spec's backoff
// schedule. On success it computes the protocol fee and queries the
// authoritative on-chain payment count for the execution's payment number.
func ExecuteWithRetry(ctx context.Context, sub *store.Subscription, gateway chain.Gateway) (*Execution, error) {
	idBytes, err := subscriptionIDBytes(sub.ID)
	if err != nil {
		return nil, err
	}

	var receipt *chain.ExecutionReceipt
	step := &fixedStepBackoff{}
	policy := backoff.WithMaxRetries(step, maxExecutionAttempts-1)

	attempt := 0
	opErr := backoff.Retry(func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, executionAttemptTimeout)
		defer cancel()

		r, err := gateway.ExecuteSubscription(attemptCtx, idBytes)
		if err != nil {
			if !retriable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		receipt = r
		return nil
	}, policy)

	if opErr != nil {
		return nil, fmt.Errorf("execute subscription after %d attempts: %w", attempt, opErr)
	}

	paymentAmount := sub.AmountBig()
	fee := new(big.Int).Div(new(big.Int).Mul(paymentAmount, big.NewInt(protocolFeeBps)), big.NewInt(10000))

	countCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	paymentCount, err := gateway.GetPaymentCount(countCtx, idBytes)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("get payment count after execution: %w", err)
	}

	return &Execution{
		TxHash:        receipt.TxHash.Hex(),
		BlockNumber:   receipt.BlockNumber,
		GasUsed:       receipt.GasUsed,
		GasPrice:      receipt.GasPrice,
		ProtocolFee:   fee,
		PaymentAmount: paymentAmount,
		PaymentNumber: paymentCount,
	}, nil
}
