package store

import (
	"math/big"
	"time"
)

// Status is a subscription's lifecycle state as tracked by the store. It is
// independent of the on-chain status the gateway reports; just-in-time
// validation reconciles the two on every tick.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// allowedTransitions is the state machine's transition DAG. SetStatus
// rejects anything not listed here with ErrInvalidTransition.
var allowedTransitions = map[Status]map[Status]bool{
	StatusActive: {
		StatusCompleted: true,
		StatusPaused:    true,
		StatusExpired:   true,
		StatusCancelled: true,
	},
	StatusPaused: {
		StatusActive:    true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// Subscription is the persisted row backing one recurring payment
// agreement. Money fields are decimal strings (as parsed) rather than
// float64 to avoid precision loss; callers convert to *big.Int as needed.
type Subscription struct {
	ID               string
	Subscriber       string
	Merchant         string
	Token            string
	Amount           string
	IntervalSeconds  int64
	StartTime        int64
	MaxPayments      int64
	MaxTotalAmount   string
	Expiry           int64
	Nonce            int64
	Status           Status
	ExecutedPayments int64
	TotalPaid        string
	NextPaymentDue   time.Time
	FailureCount     int64
	Chain            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DABlock          *int64
	DAIndex          *int64
}

// AmountBig parses Amount as a *big.Int, panicking on malformed data since
// rows are only ever written by code that already validated the decimal
// string before insert.
func (s *Subscription) AmountBig() *big.Int {
	n, ok := new(big.Int).SetString(s.Amount, 10)
	if !ok {
		panic("store: subscription row has malformed amount: " + s.Amount)
	}
	return n
}

// Execution is one completed on-chain payment against a subscription.
type Execution struct {
	ID             string
	SubscriptionID string
	PaymentNumber  int64
	TxHash         string
	BlockNumber    int64
	GasUsed        int64
	GasPrice       string
	ProtocolFee    string
	PaymentAmount  string
	Chain          string
	ExecutedAt     time.Time
}

// IntentCache is the cached signed intent behind a subscription, kept so
// the scheduler and API can serve it without round-tripping to the DA
// layer or asking the subscriber to resubmit.
type IntentCache struct {
	ID             string
	SubscriptionID string
	Signature      string
	Subscriber     string
	Merchant       string
	Token          string
	Amount         string
	IntervalSeconds int64
	StartTime      int64
	MaxPayments    int64
	MaxTotalAmount string
	Expiry         int64
	Nonce          int64
	Chain          string
	CreatedAt      time.Time
}

// DueSubscriptionFilter parameterises GetDueSubscriptions.
type DueSubscriptionFilter struct {
	Chain  string
	Now    time.Time
	Limit  int
	Offset int
}
