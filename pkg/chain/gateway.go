package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Gateway is the narrow interface to one chain's SubscriptionManager and
// ERC-20 token contracts. Every operation is scoped to the chain the
// implementing adapter was built for — callers select an adapter by chain
// tag via a Registry rather than passing a tag into these calls.
type Gateway interface {
	// GetSubscription reads the on-chain subscription struct. Returns
	// ErrNotFound if the subscription's on-chain nonce is zero.
	GetSubscription(ctx context.Context, id [32]byte) (*OnChainSubscription, error)

	// GetPaymentCount returns the authoritative executed-payment counter.
	GetPaymentCount(ctx context.Context, id [32]byte) (uint64, error)

	// ExecuteSubscription submits executeSubscription(id, relayer) and
	// awaits the receipt. A missing or status=0 receipt is
	// ErrTransactionFailed.
	ExecuteSubscription(ctx context.Context, id [32]byte) (*ExecutionReceipt, error)

	// CheckBalance returns token's balance of owner. token == the zero
	// address reads the native balance.
	CheckBalance(ctx context.Context, owner, token common.Address) (*big.Int, error)

	// CheckAllowance reports whether owner's allowance to the relayer for
	// token is at least needed. The native asset always returns true
	// (the contract uses a deposit model for ETH).
	CheckAllowance(ctx context.Context, owner, token common.Address, needed *big.Int) (bool, error)

	// BlockTimestamp returns the Unix timestamp of blockNumber.
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)

	// FetchLogs returns SubscriptionManager logs matching filter.
	// Implementations must tolerate RPC providers that cap range size.
	FetchLogs(ctx context.Context, filter LogFilter) ([]Log, error)

	// Tag returns this adapter's chain tag, e.g. "sepolia".
	Tag() string

	// ChainID returns the chain's numeric id, used in EIP-712 domain
	// separation and transaction signing.
	ChainID() *big.Int
}
