package scheduler

import "errors"

var (
	ErrSubscriptionNotFound   = errors.New("scheduler: subscription not found on chain")
	ErrSubscriptionNotActive  = errors.New("scheduler: subscription not active")
	ErrNotDue                 = errors.New("scheduler: subscription not yet due")
	ErrInsufficientBalance    = errors.New("scheduler: insufficient balance")
	ErrInsufficientAllowance  = errors.New("scheduler: insufficient allowance")
	ErrChain                  = errors.New("scheduler: chain error")
	ErrSubscriptionIDTooLong  = errors.New("scheduler: subscription id exceeds maximum length")
)
