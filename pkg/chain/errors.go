// Package chain is the narrow gateway to the on-chain SubscriptionManager
// and ERC-20 contracts, dispatched by chain tag rather than by inheritance.
package chain

import "errors"

// Error taxonomy surfaced by gateway operations, mapped by the scheduler
// onto retry/failure decisions and by the server onto HTTP status codes.
var (
	ErrRpcFailure        = errors.New("rpc failure")
	ErrContractRevert    = errors.New("contract revert")
	ErrInsufficientGas   = errors.New("insufficient gas")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrNotFound          = errors.New("not found")
)
