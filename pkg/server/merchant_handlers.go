package server

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aurum-protocol/relayer/pkg/indexer"
	"github.com/aurum-protocol/relayer/pkg/intent"
)

// transactionView is one merchant payment event enriched with a
// human-readable token symbol and decimal-formatted amount, resolved from
// the handler's token registry.
type transactionView struct {
	indexer.TransactionData
	Symbol          string `json:"symbol"`
	FormattedAmount string `json:"formattedAmount"`
}

func (h *Handlers) toTransactionView(tx indexer.TransactionData) transactionView {
	amount, _ := new(big.Int).SetString(tx.Amount, 10)
	return transactionView{
		TransactionData: tx,
		Symbol:          h.tokens.Symbol(tx.Chain, tx.Token),
		FormattedAmount: intent.FormatAmount(amount, h.tokens.Decimals(tx.Chain, tx.Token)),
	}
}

type merchantTransactionsResponse struct {
	Transactions []transactionView `json:"transactions"`
	Page         uint32            `json:"page"`
	PageSize     uint32            `json:"pageSize"`
	TotalCount   uint64            `json:"totalCount"`
	TotalRevenue string            `json:"totalRevenue"`
	HasMore      bool              `json:"hasMore"`
	ExplorerURL  string            `json:"explorerUrl,omitempty"`
}

// HandleMerchantTransactions handles
// GET /merchant/{address}/transactions?page&size&from_block&to_block&chain.
func (h *Handlers) HandleMerchantTransactions(w http.ResponseWriter, r *http.Request) {
	merchant := chi.URLParam(r, "address")
	if err := validateAddressFormat(merchant); err != nil {
		writeError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	filter := indexer.TransactionFilter{
		Page:     uint32(parseUintDefault(q.Get("page"), 0)),
		PageSize: minUint32(uint32(parseUintDefault(q.Get("size"), 50)), 100),
		Chain:    q.Get("chain"),
	}
	if v := q.Get("from_block"); v != "" {
		n := parseUintDefault(v, 0)
		filter.FromBlock = &n
	}
	if v := q.Get("to_block"); v != "" {
		n := parseUintDefault(v, 0)
		filter.ToBlock = &n
	}

	result, err := h.indexer.GetMerchantTransactions(r.Context(), merchant, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	views := make([]transactionView, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		views = append(views, h.toTransactionView(tx))
	}

	writeJSON(w, http.StatusOK, merchantTransactionsResponse{
		Transactions: views,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
		TotalCount:   result.TotalCount,
		TotalRevenue: result.TotalRevenue,
		HasMore:      result.HasMore,
		ExplorerURL:  result.ExplorerURL,
	})
}

type merchantStatsResponse struct {
	Merchant            string `json:"merchant"`
	TotalSubscriptions  uint64 `json:"totalSubscriptions"`
	ActiveSubscriptions uint64 `json:"activeSubscriptions"`
	TotalRevenue        string `json:"totalRevenue"`
	TotalPayments       uint64 `json:"totalPayments"`
	ChainID             uint64 `json:"chainId"`
}

// HandleMerchantStats handles GET /merchant/{address}/stats, serving out of
// the 5-minute cache when possible to spare the indexer repeated aggregate
// queries for dashboards that poll often.
func (h *Handlers) HandleMerchantStats(w http.ResponseWriter, r *http.Request) {
	merchant := chi.URLParam(r, "address")
	if err := validateAddressFormat(merchant); err != nil {
		writeError(w, h.logger, err)
		return
	}

	cacheKey := strings.ToLower(merchant)
	if cached, ok := h.stats.get(cacheKey); ok {
		writeJSON(w, http.StatusOK, toMerchantStatsResponse(merchant, cached))
		return
	}

	stats, err := h.indexer.GetMerchantStats(r.Context(), merchant)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if stats == nil {
		stats = &indexer.MerchantStats{Merchant: merchant, TotalRevenue: "0"}
	}

	h.stats.set(cacheKey, stats)
	writeJSON(w, http.StatusOK, toMerchantStatsResponse(merchant, stats))
}

func toMerchantStatsResponse(merchant string, stats *indexer.MerchantStats) merchantStatsResponse {
	return merchantStatsResponse{
		Merchant:            merchant,
		TotalSubscriptions:  stats.TotalSubscriptions,
		ActiveSubscriptions: stats.ActiveSubscriptions,
		TotalRevenue:        stats.TotalRevenue,
		TotalPayments:       stats.TotalPayments,
		ChainID:             stats.ChainID,
	}
}

func validateAddressFormat(addr string) error {
	trimmed := addr
	if len(trimmed) < 2 || trimmed[:2] != "0x" {
		return errInvalidAddress
	}
	trimmed = trimmed[2:]
	if len(trimmed) != 40 {
		return errInvalidAddress
	}
	for _, c := range trimmed {
		if !isHexDigit(c) {
			return errInvalidAddress
		}
	}
	return nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func parseUintDefault(s string, def uint64) uint64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
