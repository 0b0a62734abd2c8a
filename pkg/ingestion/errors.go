package ingestion

import "errors"

var (
	// ErrNonceUsed is returned when the subscriber has already registered
	// the intent's nonce (replay prevention).
	ErrNonceUsed = errors.New("ingestion: nonce already used by this subscriber")
	// ErrDASubmissionFailed wraps a data-availability submission failure.
	// Ingestion treats this as a hard failure: the block/extrinsic
	// references it would have returned are what gets persisted.
	ErrDASubmissionFailed = errors.New("ingestion: data-availability submission failed")
)
