package scheduler

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/store"
)

type stubGateway struct {
	tag         string
	chainID     *big.Int
	subscription *chain.OnChainSubscription
	subErr      error
}

func (g *stubGateway) GetSubscription(ctx context.Context, id [32]byte) (*chain.OnChainSubscription, error) {
	return g.subscription, g.subErr
}
func (g *stubGateway) GetPaymentCount(ctx context.Context, id [32]byte) (uint64, error) { return 1, nil }
func (g *stubGateway) ExecuteSubscription(ctx context.Context, id [32]byte) (*chain.ExecutionReceipt, error) {
	return &chain.ExecutionReceipt{BlockNumber: 1, GasUsed: 21000, GasPrice: big.NewInt(1)}, nil
}
func (g *stubGateway) CheckBalance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	return big.NewInt(1_000_000_000_000_000_000), nil
}
func (g *stubGateway) CheckAllowance(ctx context.Context, owner, token common.Address, needed *big.Int) (bool, error) {
	return true, nil
}
func (g *stubGateway) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	return 0, nil
}
func (g *stubGateway) FetchLogs(ctx context.Context, filter chain.LogFilter) ([]chain.Log, error) {
	return nil, nil
}
func (g *stubGateway) Tag() string       { return g.tag }
func (g *stubGateway) ChainID() *big.Int { return g.chainID }

func newTestScheduler(t *testing.T) (*Scheduler, sqlmock.Sqlmock, *chain.Registry) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := store.NewClientFromDB(db)
	chains := chain.NewRegistry()
	return New(client, chains, nil, nil), mock, chains
}

func TestTickSkipsWhenClusterLockHeldElsewhere(t *testing.T) {
	sched, mock, _ := newTestScheduler(t)

	mock.ExpectQuery("SELECT pg_try_advisory_lock").WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTickReleasesLockWhenNoChainsRegistered(t *testing.T) {
	sched, mock, _ := newTestScheduler(t)

	mock.ExpectQuery("SELECT pg_try_advisory_lock").WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").WillReturnResult(sqlmock.NewResult(0, 0))

	err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func subscriptionFixture(now time.Time) *store.Subscription {
	return &store.Subscription{
		ID:               "0x" + "11" + stringsRepeat("00", 31),
		Subscriber:       "0x1111111111111111111111111111111111111111",
		Merchant:         "0x2222222222222222222222222222222222222222",
		Token:            "0x0000000000000000000000000000000000000000",
		Amount:           "1000000000000000000",
		IntervalSeconds:  86400,
		StartTime:        now.Add(-86400 * time.Second).Unix(),
		MaxPayments:      12,
		MaxTotalAmount:   "12000000000000000000",
		Expiry:           now.Add(365 * 24 * time.Hour).Unix(),
		Nonce:            1,
		Status:           store.StatusActive,
		ExecutedPayments: 0,
		TotalPaid:        "0",
		NextPaymentDue:   now.Add(-time.Hour),
		Chain:            "sepolia",
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func onChainFixture(sub *store.Subscription) *chain.OnChainSubscription {
	return &chain.OnChainSubscription{
		Subscriber:       common.HexToAddress(sub.Subscriber),
		Merchant:         common.HexToAddress(sub.Merchant),
		Token:            common.HexToAddress(sub.Token),
		Amount:           sub.AmountBig(),
		Interval:         uint64(sub.IntervalSeconds),
		StartTime:        uint64(sub.StartTime),
		MaxPayments:      uint64(sub.MaxPayments),
		MaxTotalAmount:   mustBig(sub.MaxTotalAmount),
		Expiry:           uint64(sub.Expiry),
		Nonce:            uint64(sub.Nonce),
		Status:           chain.StatusActive,
		ExecutedPayments: uint64(sub.ExecutedPayments),
	}
}

func mustBig(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

func TestValidatePaymentReportsNotDueWhenChainSaysSo(t *testing.T) {
	now := time.Now()
	sub := subscriptionFixture(now)
	onChain := onChainFixture(sub)
	onChain.ExecutedPayments = 0
	onChain.StartTime = uint64(now.Add(time.Hour).Unix())

	gateway := &stubGateway{tag: "sepolia", chainID: big.NewInt(11155111), subscription: onChain}

	outcome, err := ValidatePayment(context.Background(), sub, gateway)
	require.NoError(t, err)
	require.Equal(t, NotDueOutcome, outcome)
}

func TestValidatePaymentFlagsNotFound(t *testing.T) {
	sub := subscriptionFixture(time.Now())
	gateway := &stubGateway{tag: "sepolia", chainID: big.NewInt(11155111), subErr: chain.ErrNotFound}

	_, err := ValidatePayment(context.Background(), sub, gateway)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestValidatePaymentSucceedsWhenDue(t *testing.T) {
	now := time.Now()
	sub := subscriptionFixture(now)
	onChain := onChainFixture(sub)

	gateway := &stubGateway{tag: "sepolia", chainID: big.NewInt(11155111), subscription: onChain}

	outcome, err := ValidatePayment(context.Background(), sub, gateway)
	require.NoError(t, err)
	require.Equal(t, Valid, outcome)
}
