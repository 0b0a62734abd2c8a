package store

import "errors"

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate means a unique constraint rejected an insert: primary
	// key, (subscriber, nonce), or subscription id collision.
	ErrDuplicate = errors.New("store: duplicate")

	// ErrDuplicateExecution means the (subscription_id, payment_number)
	// unique constraint rejected an execution insert. The scheduler treats
	// this as idempotent success, not a failure.
	ErrDuplicateExecution = errors.New("store: duplicate execution")

	// ErrLockHeld means a non-blocking row lock attempt was contended.
	ErrLockHeld = errors.New("store: lock held")

	// ErrInvalidTransition means set_status was asked for a transition the
	// state machine does not allow.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)
