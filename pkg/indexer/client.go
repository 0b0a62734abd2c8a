// Package indexer queries the off-chain GraphQL indexer for merchant-facing
// transaction history and aggregate stats, and formats links back into its
// block explorer. A Client built without INDEXER_GRAPHQL_ENDPOINT runs in
// stub mode, returning empty results rather than failing, so the relayer
// stays usable without an indexer collaborator.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aurum-protocol/relayer/pkg/config"
)

// TransactionData is one payment event as surfaced to merchant-facing API
// consumers.
type TransactionData struct {
	SubscriptionID  string `json:"subscriptionId"`
	Subscriber      string `json:"subscriber"`
	Merchant        string `json:"merchant"`
	PaymentNumber   uint64 `json:"paymentNumber"`
	Token           string `json:"token"`
	Amount          string `json:"amount"`
	Fee             string `json:"fee"`
	Relayer         string `json:"relayer"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	Timestamp       uint64 `json:"timestamp"`
	Chain           string `json:"chain"`
}

// MerchantTransactionsResult is the paged transaction history for one merchant.
type MerchantTransactionsResult struct {
	Transactions []TransactionData
	TotalCount   uint64
	TotalRevenue string
	HasMore      bool
	ExplorerURL  string
}

// MerchantStats is the aggregate stats row for one merchant.
type MerchantStats struct {
	Merchant             string
	TotalSubscriptions   uint64
	ActiveSubscriptions  uint64
	TotalRevenue         string
	TotalPayments        uint64
	ChainID              uint64
}

// TransactionFilter narrows a merchant transaction query by page and,
// optionally, block range and chain.
type TransactionFilter struct {
	Page      uint32
	PageSize  uint32
	FromBlock *uint64
	ToBlock   *uint64
	Chain     string
}

// Client talks to the indexer's GraphQL endpoint.
type Client struct {
	httpClient      *http.Client
	graphqlEndpoint string
	explorerBaseURL string
	stub            bool
}

// NewClient builds a Client from cfg. Like the DA client, indexer wiring is
// all-or-nothing: an empty IndexerGraphQLEndpoint is sufficient to detect
// stub mode.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		graphqlEndpoint: cfg.IndexerGraphQLEndpoint,
		explorerBaseURL: cfg.IndexerExplorerURL,
		stub:            cfg.IndexerGraphQLEndpoint == "",
	}
}

// HealthCheck reports whether the indexer is reachable.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	if c.stub {
		return true, nil
	}

	resp, err := c.execute(ctx, "{ __typename }", nil, nil)
	if err != nil {
		return false, err
	}
	if len(resp.Errors) > 0 {
		return false, nil
	}
	return true, nil
}

// GetMerchantTransactions returns the merchant's payment history page and
// aggregate revenue/count, along with an explorer deep link.
func (c *Client) GetMerchantTransactions(ctx context.Context, merchant string, filter TransactionFilter) (*MerchantTransactionsResult, error) {
	merchant = strings.ToLower(merchant)

	if c.stub {
		return &MerchantTransactionsResult{TotalRevenue: "0"}, nil
	}

	where := []string{fmt.Sprintf("merchant: { _eq: %q }", merchant)}
	if filter.Chain != "" {
		where = append(where, fmt.Sprintf("chainId: { _eq: %q }", filter.Chain))
	}
	if filter.FromBlock != nil {
		where = append(where, fmt.Sprintf("blockNumber: { _gte: %d }", *filter.FromBlock))
	}
	if filter.ToBlock != nil {
		where = append(where, fmt.Sprintf("blockNumber: { _lte: %d }", *filter.ToBlock))
	}
	whereClause := "{ " + strings.Join(where, ", ") + " }"

	offset := filter.Page * filter.PageSize
	query := fmt.Sprintf(`
	query MerchantTransactions($limit: Int!, $offset: Int!) {
		Payment(
			where: %s
			order_by: { timestamp: desc }
			limit: $limit
			offset: $offset
		) {
			id subscriptionId paymentNumber token amount fee relayer txHash blockNumber timestamp chainId merchant subscriber
		}
		Payment_aggregate(where: %s) {
			aggregate { count sum { amount } }
		}
	}`, whereClause, whereClause)

	variables := map[string]any{"limit": filter.PageSize, "offset": offset}

	var payload struct {
		Payment          []paymentEvent `json:"Payment"`
		PaymentAggregate struct {
			Aggregate *struct {
				Count string `json:"count"`
				Sum   *struct {
					Amount string `json:"amount"`
				} `json:"sum"`
			} `json:"aggregate"`
		} `json:"Payment_aggregate"`
	}
	resp, err := c.execute(ctx, query, variables, &payload)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("indexer graphql errors: %s", joinErrors(resp.Errors))
	}

	var totalCount uint64
	totalRevenue := "0"
	if agg := payload.PaymentAggregate.Aggregate; agg != nil {
		fmt.Sscanf(agg.Count, "%d", &totalCount)
		if agg.Sum != nil && agg.Sum.Amount != "" {
			totalRevenue = agg.Sum.Amount
		}
	}

	transactions := make([]TransactionData, 0, len(payload.Payment))
	for _, ev := range payload.Payment {
		transactions = append(transactions, ev.toTransactionData(merchant))
	}

	hasMore := uint64(filter.Page+1)*uint64(filter.PageSize) < totalCount

	return &MerchantTransactionsResult{
		Transactions: transactions,
		TotalCount:   totalCount,
		TotalRevenue: totalRevenue,
		HasMore:      hasMore,
		ExplorerURL:  c.BuildExplorerURL("payments", merchant),
	}, nil
}

// GetMerchantStats returns the merchant's aggregate stats row, or nil if the
// indexer has none recorded yet.
func (c *Client) GetMerchantStats(ctx context.Context, merchant string) (*MerchantStats, error) {
	merchant = strings.ToLower(merchant)

	if c.stub {
		return &MerchantStats{Merchant: merchant, TotalRevenue: "0"}, nil
	}

	query := `
	query MerchantStats($merchant: String!) {
		MerchantStats(where: { merchant: { _eq: $merchant } }, limit: 1) {
			merchant totalSubscriptions activeSubscriptions totalRevenue totalPayments chainId
		}
	}`
	variables := map[string]any{"merchant": merchant}

	var payload struct {
		MerchantStats []statsRow `json:"MerchantStats"`
	}
	resp, err := c.execute(ctx, query, variables, &payload)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("indexer graphql errors: %s", joinErrors(resp.Errors))
	}
	if len(payload.MerchantStats) == 0 {
		return nil, nil
	}
	row := payload.MerchantStats[0]
	return &MerchantStats{
		Merchant:            row.Merchant,
		TotalSubscriptions:  row.TotalSubscriptions,
		ActiveSubscriptions: row.ActiveSubscriptions,
		TotalRevenue:        row.TotalRevenue,
		TotalPayments:       row.TotalPayments,
		ChainID:             row.ChainID,
	}, nil
}

// BuildExplorerURL formats a deep link into the indexer's block explorer.
// It returns "" in stub mode, since there is no explorer to link to.
func (c *Client) BuildExplorerURL(entityType, entityID string) string {
	if c.stub {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s",
		strings.TrimRight(c.explorerBaseURL, "/"),
		strings.Trim(entityType, "/"),
		entityID)
}

type paymentEvent struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscriptionId"`
	PaymentNumber  uint64 `json:"paymentNumber"`
	Token          string `json:"token"`
	Amount         string `json:"amount"`
	Fee            string `json:"fee"`
	Relayer        string `json:"relayer"`
	TxHash         string `json:"txHash"`
	BlockNumber    uint64 `json:"blockNumber"`
	Timestamp      uint64 `json:"timestamp"`
	ChainID        string `json:"chainId"`
	Merchant       string `json:"merchant"`
	Subscriber     string `json:"subscriber"`
}

func (ev paymentEvent) toTransactionData(merchant string) TransactionData {
	subscriber := ev.Subscriber
	if subscriber == "" {
		subscriber = "0x0000000000000000000000000000000000000000"
	}
	return TransactionData{
		SubscriptionID:  ev.SubscriptionID,
		Subscriber:      subscriber,
		Merchant:        merchant,
		PaymentNumber:   ev.PaymentNumber,
		Token:           ev.Token,
		Amount:          ev.Amount,
		Fee:             ev.Fee,
		Relayer:         ev.Relayer,
		TransactionHash: ev.TxHash,
		BlockNumber:     ev.BlockNumber,
		Timestamp:       ev.Timestamp,
		Chain:           ev.ChainID,
	}
}

type statsRow struct {
	Merchant            string `json:"merchant"`
	TotalSubscriptions  uint64 `json:"totalSubscriptions"`
	ActiveSubscriptions uint64 `json:"activeSubscriptions"`
	TotalRevenue        string `json:"totalRevenue"`
	TotalPayments       uint64 `json:"totalPayments"`
	ChainID             uint64 `json:"chainId"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

func joinErrors(errs []graphqlError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, ", ")
}

// execute posts a GraphQL query and unmarshals its data field into out, when
// out is non-nil.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) (*graphqlResponse, error) {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, fmt.Errorf("marshal indexer query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlEndpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build indexer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("indexer endpoint returned 404")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer request failed with status %d", resp.StatusCode)
	}

	var payload graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode indexer response: %w", err)
	}

	if out != nil && len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, out); err != nil {
			return nil, fmt.Errorf("parse indexer response data: %w", err)
		}
	}

	return &payload, nil
}
