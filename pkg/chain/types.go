package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SubscriptionStatus mirrors the on-chain status enum. Contract status codes
// are ordered {0 ACTIVE, 1 PAUSED, 2 CANCELLED, 3 EXPIRED, 4 COMPLETED}.
type SubscriptionStatus uint8

const (
	StatusActive SubscriptionStatus = iota
	StatusPaused
	StatusCancelled
	StatusExpired
	StatusCompleted
)

func (s SubscriptionStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusPaused:
		return "PAUSED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusExpired:
		return "EXPIRED"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// OnChainSubscription is the live contract-side view of a subscription, as
// returned by getSubscription. A nonce of 0 means no such subscription
// exists on-chain.
type OnChainSubscription struct {
	Subscriber       common.Address
	Merchant         common.Address
	Token            common.Address
	Amount           *big.Int
	Interval         uint64
	StartTime        uint64
	MaxPayments      uint64
	MaxTotalAmount   *big.Int
	Expiry           uint64
	Nonce            uint64
	Status           SubscriptionStatus
	ExecutedPayments uint64
}

// ExecutionReceipt is the outcome of submitting executeSubscription.
type ExecutionReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	GasPrice    *big.Int
	Success     bool
}

// Log is a chain-agnostic view of one contract event log.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
	Index       uint
}

// LogFilter scopes a fetch_logs call.
type LogFilter struct {
	Address   common.Address
	Topic     common.Hash
	FromBlock uint64
	ToBlock   uint64
}
