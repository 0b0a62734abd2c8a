// Package server implements the relayer's inbound HTTP surface: intent
// submission, subscription and merchant lookups, and health reporting. It
// is glue over pkg/ingestion, pkg/store, pkg/chain and pkg/indexer rather
// than a source of domain logic.
package server

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/da"
	"github.com/aurum-protocol/relayer/pkg/indexer"
	"github.com/aurum-protocol/relayer/pkg/ingestion"
	"github.com/aurum-protocol/relayer/pkg/intent"
	"github.com/aurum-protocol/relayer/pkg/store"
)

// Handlers holds every collaborator the HTTP surface reads from or writes
// through.
type Handlers struct {
	ingestion *ingestion.Service
	subs      *store.SubscriptionRepository
	client    *store.Client
	chains    *chain.Registry
	indexer   *indexer.Client
	da        *da.Client
	tokens    *intent.TokenRegistry
	stats     *merchantStatsCache
	logger    *logrus.Logger
}

// New builds Handlers from its collaborators. tokens may be nil, in which
// case merchant transactions are served without resolved symbols.
func New(ingestionSvc *ingestion.Service, client *store.Client, chains *chain.Registry, idx *indexer.Client, dac *da.Client, tokens *intent.TokenRegistry, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if tokens == nil {
		tokens = intent.NewTokenRegistry()
	}
	return &Handlers{
		ingestion: ingestionSvc,
		subs:      store.NewSubscriptionRepository(client),
		client:    client,
		chains:    chains,
		indexer:   idx,
		da:        dac,
		tokens:    tokens,
		stats:     newMerchantStatsCache(),
		logger:    logger,
	}
}

type submitIntentRequest struct {
	Intent    intent.SubscriptionIntent `json:"intent"`
	Signature string                    `json:"signature"`
}

type submitIntentResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	DABlock        int64  `json:"daBlock"`
	DAExtrinsic    int64  `json:"daExtrinsic"`
	Status         string `json:"status"`
}

// HandleSubmitIntent handles POST /intent.
func (h *Handlers) HandleSubmitIntent(w http.ResponseWriter, r *http.Request) {
	var req submitIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error(), Code: "VALIDATION"})
		return
	}

	result, err := h.ingestion.Ingest(r.Context(), req.Intent, req.Signature)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, submitIntentResponse{
		SubscriptionID: result.SubscriptionID,
		DABlock:        result.DABlock,
		DAExtrinsic:    result.DAIndex,
		Status:         string(result.Status),
	})
}

type subscriptionResponse struct {
	ID               string `json:"id"`
	Subscriber       string `json:"subscriber"`
	Merchant         string `json:"merchant"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	Interval         int64  `json:"interval"`
	StartTime        int64  `json:"startTime"`
	MaxPayments      int64  `json:"maxPayments"`
	MaxTotalAmount   string `json:"maxTotalAmount"`
	Expiry           int64  `json:"expiry"`
	Nonce            int64  `json:"nonce"`
	Status           string `json:"status"`
	ExecutedPayments int64  `json:"executedPayments"`
	TotalPaid        string `json:"totalPaid"`
	NextPaymentTime  int64  `json:"nextPaymentTime"`
	FailureCount     int64  `json:"failureCount"`
	Chain            string `json:"chain"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
	OnChainStatus    int    `json:"onChainStatus"`
	OnChainPayments  uint64 `json:"onChainPayments"`
	DABlock          *int64 `json:"daBlock,omitempty"`
	DAIndex          *int64 `json:"daIndex,omitempty"`
}

// HandleGetSubscription handles GET /subscription/{id}, reconciling the
// stored row with the live on-chain status and payment count.
func (h *Handlers) HandleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validateSubscriptionIDFormat(id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sub, err := h.subs.GetSubscription(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	onChainStatus := 255
	var onChainPayments uint64

	gateway, err := h.chains.Get(sub.Chain)
	if err == nil {
		var idBytes [32]byte
		decoded, decodeErr := hex.DecodeString(strings.TrimPrefix(sub.ID, "0x"))
		if decodeErr == nil && len(decoded) == 32 {
			copy(idBytes[:], decoded)
			if onChain, chainErr := gateway.GetSubscription(r.Context(), idBytes); chainErr == nil {
				onChainStatus = int(onChain.Status)
				onChainPayments = onChain.ExecutedPayments
			}
		}
	}

	nextPaymentTime := sub.NextPaymentDue.Unix()
	if sub.ExecutedPayments >= sub.MaxPayments {
		nextPaymentTime = 0
	}

	writeJSON(w, http.StatusOK, subscriptionResponse{
		ID:               sub.ID,
		Subscriber:       sub.Subscriber,
		Merchant:         sub.Merchant,
		Token:            sub.Token,
		Amount:           sub.Amount,
		Interval:         sub.IntervalSeconds,
		StartTime:        sub.StartTime,
		MaxPayments:      sub.MaxPayments,
		MaxTotalAmount:   sub.MaxTotalAmount,
		Expiry:           sub.Expiry,
		Nonce:            sub.Nonce,
		Status:           string(sub.Status),
		ExecutedPayments: sub.ExecutedPayments,
		TotalPaid:        sub.TotalPaid,
		NextPaymentTime:  nextPaymentTime,
		FailureCount:     sub.FailureCount,
		Chain:            sub.Chain,
		CreatedAt:        sub.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        sub.UpdatedAt.Format(time.RFC3339),
		OnChainStatus:    onChainStatus,
		OnChainPayments:  onChainPayments,
		DABlock:          sub.DABlock,
		DAIndex:          sub.DAIndex,
	})
}

func validateSubscriptionIDFormat(id string) error {
	trimmed := strings.TrimPrefix(id, "0x")
	if len(trimmed) != 64 {
		return errInvalidSubscriptionID
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return errInvalidSubscriptionID
	}
	return nil
}
