package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurum-protocol/relayer/pkg/config"
)

func TestNewClientStubModeWhenEndpointUnset(t *testing.T) {
	c := NewClient(&config.Config{})
	assert.True(t, c.stub)
}

func TestNewClientRemoteModeWhenEndpointSet(t *testing.T) {
	c := NewClient(&config.Config{IndexerGraphQLEndpoint: "https://indexer.example/graphql"})
	assert.False(t, c.stub)
}

func TestStubHealthCheckAlwaysHealthy(t *testing.T) {
	c := NewClient(&config.Config{})
	ok, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStubGetMerchantTransactionsEmpty(t *testing.T) {
	c := NewClient(&config.Config{})
	result, err := c.GetMerchantTransactions(context.Background(), "0xABC", TransactionFilter{Page: 0, PageSize: 50})
	require.NoError(t, err)
	assert.Empty(t, result.Transactions)
	assert.False(t, result.HasMore)
	assert.Equal(t, "0", result.TotalRevenue)
}

func TestStubGetMerchantStatsReturnsZeroedRow(t *testing.T) {
	c := NewClient(&config.Config{})
	stats, err := c.GetMerchantStats(context.Background(), "0xAbC")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, "0xabc", stats.Merchant)
}

func TestStubBuildExplorerURLEmpty(t *testing.T) {
	c := NewClient(&config.Config{})
	assert.Equal(t, "", c.BuildExplorerURL("payments", "0xabc"))
}

func TestBuildExplorerURLTrimsSlashes(t *testing.T) {
	c := NewClient(&config.Config{
		IndexerGraphQLEndpoint: "https://indexer.example/graphql",
		IndexerExplorerURL:     "https://explorer.example/",
	})
	assert.Equal(t, "https://explorer.example/payments/0xabc", c.BuildExplorerURL("/payments/", "0xabc"))
}

func TestPaymentEventToTransactionDataDefaultsSubscriber(t *testing.T) {
	ev := paymentEvent{SubscriptionID: "0x01", Amount: "100"}
	td := ev.toTransactionData("0xmerchant")
	assert.Equal(t, "0x0000000000000000000000000000000000000000", td.Subscriber)
	assert.Equal(t, "0xmerchant", td.Merchant)
}
