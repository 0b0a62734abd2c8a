package intent

import "errors"

// Sentinel errors for intent validation, surfaced verbatim by the ingestion
// entry point per the caller's error-to-status mapping.
var (
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrInvalidField           = errors.New("invalid field")
	ErrInconsistentParameters = errors.New("inconsistent parameters")
)
