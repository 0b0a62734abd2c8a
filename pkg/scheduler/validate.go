package scheduler

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/intent"
	"github.com/aurum-protocol/relayer/pkg/store"
)

const maxSubscriptionIDLength = 66 // "0x" + 64 hex chars

// ValidationOutcome is the just-in-time validation result for one
// subscription, checked fresh against the chain before every execution
// attempt.
type ValidationOutcome int

const (
	Valid ValidationOutcome = iota
	NotDueOutcome
	InsufficientBalanceOutcome
	InsufficientAllowanceOutcome
)

// subscriptionIDBytes decodes a "0x"+64-hex subscription id into the
// [32]byte the gateway's contract calls expect.
func subscriptionIDBytes(id string) ([32]byte, error) {
	var out [32]byte
	if len(id) > maxSubscriptionIDLength {
		return out, ErrSubscriptionIDTooLong
	}
	trimmed := strings.TrimPrefix(id, "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 32 {
		return out, fmt.Errorf("%w: malformed subscription id %q", ErrChain, id)
	}
	copy(out[:], decoded)
	return out, nil
}

// ValidatePayment runs the just-in-time validation sequence against the
// live chain: on-chain existence, status, token/nonce/amount consistency
// with the stored row, due-timing, balance and allowance.
func ValidatePayment(ctx context.Context, sub *store.Subscription, gateway chain.Gateway) (ValidationOutcome, error) {
	idBytes, err := subscriptionIDBytes(sub.ID)
	if err != nil {
		return 0, err
	}

	onChainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	onChain, err := gateway.GetSubscription(onChainCtx, idBytes)
	cancel()
	if err != nil {
		if err == chain.ErrNotFound {
			return 0, ErrSubscriptionNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrChain, err)
	}

	if onChain.Status != chain.StatusActive {
		return 0, ErrSubscriptionNotActive
	}

	storedToken := common.HexToAddress(sub.Token)
	if onChain.Token != storedToken {
		return 0, fmt.Errorf("%w: token mismatch", ErrChain)
	}

	if onChain.Nonce != uint64(sub.Nonce) {
		return 0, fmt.Errorf("%w: nonce mismatch - possible replay", ErrChain)
	}

	now := time.Now()
	if uint64(now.Unix()) > onChain.Expiry {
		return 0, ErrSubscriptionNotActive
	}

	nextDueChain := onChain.StartTime + onChain.ExecutedPayments*onChain.Interval
	if uint64(now.Unix()) < nextDueChain {
		return NotDueOutcome, nil
	}

	contractTotalPaid := new(big.Int).Mul(onChain.Amount, new(big.Int).SetUint64(onChain.ExecutedPayments))
	nextTotal := new(big.Int).Add(contractTotalPaid, onChain.Amount)
	if nextTotal.Cmp(onChain.MaxTotalAmount) > 0 {
		return 0, ErrSubscriptionNotActive
	}

	storedAmount := sub.AmountBig()
	if onChain.Amount.Cmp(storedAmount) != 0 {
		return 0, fmt.Errorf("%w: amount mismatch", ErrChain)
	}

	subscriber := common.HexToAddress(sub.Subscriber)

	balanceCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	balance, err := gateway.CheckBalance(balanceCtx, subscriber, storedToken)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("%w: balance check: %v", ErrChain, err)
	}
	if balance.Cmp(onChain.Amount) < 0 {
		return InsufficientBalanceOutcome, nil
	}

	if !intent.IsNative(sub.Token) {
		allowanceCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		ok, err := gateway.CheckAllowance(allowanceCtx, subscriber, storedToken, onChain.Amount)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("%w: allowance check: %v", ErrChain, err)
		}
		if !ok {
			return InsufficientAllowanceOutcome, nil
		}
	}

	return Valid, nil
}
