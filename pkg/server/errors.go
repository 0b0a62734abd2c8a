package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/ingestion"
	"github.com/aurum-protocol/relayer/pkg/intent"
	"github.com/aurum-protocol/relayer/pkg/scheduler"
	"github.com/aurum-protocol/relayer/pkg/store"
)

// errorBody is the wire shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errInvalidSubscriptionID is returned when a path parameter isn't a
// 32-byte hex subscription id.
var errInvalidSubscriptionID = errors.New("server: invalid subscription id")

// errInvalidAddress is returned when a path parameter isn't a 20-byte hex
// address.
var errInvalidAddress = errors.New("server: invalid address")

var (
	errIndexerUnhealthy = errors.New("server: indexer reported unhealthy")
	errDAUnhealthy      = errors.New("server: data-availability layer reported unhealthy")
)

// statusForError classifies err against the relayer's error taxonomy and
// returns the HTTP status and code it surfaces as.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, intent.ErrInvalidSignature),
		errors.Is(err, intent.ErrInvalidField),
		errors.Is(err, intent.ErrInconsistentParameters),
		errors.Is(err, errInvalidSubscriptionID),
		errors.Is(err, errInvalidAddress):
		return http.StatusBadRequest, "VALIDATION"

	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrDuplicateExecution),
		errors.Is(err, ingestion.ErrNonceUsed):
		return http.StatusConflict, "DUPLICATE"

	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, scheduler.ErrSubscriptionNotFound),
		errors.Is(err, chain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"

	case errors.Is(err, ingestion.ErrDASubmissionFailed):
		return http.StatusBadGateway, "UPSTREAM"

	case errors.Is(err, chain.ErrRpcFailure):
		return http.StatusBadGateway, "UPSTREAM"

	case errors.Is(err, chain.ErrContractRevert),
		errors.Is(err, chain.ErrInsufficientGas),
		errors.Is(err, chain.ErrTransactionFailed),
		errors.Is(err, scheduler.ErrChain),
		errors.Is(err, scheduler.ErrSubscriptionNotActive),
		errors.Is(err, scheduler.ErrInsufficientBalance),
		errors.Is(err, scheduler.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity, "EXECUTION_ERROR"

	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
	} else {
		logger.WithError(err).WithField("code", code).Warn("request rejected")
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}
