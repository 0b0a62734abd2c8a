package ingestion

import (
	"context"
	"database/sql"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/config"
	"github.com/aurum-protocol/relayer/pkg/da"
	"github.com/aurum-protocol/relayer/pkg/intent"
	"github.com/aurum-protocol/relayer/pkg/store"
)

const (
	testChainID     = 11155111
	testManagerAddr = "0x4444444444444444444444444444444444444444"
)

type fakeGateway struct{ chainID *big.Int }

func (f *fakeGateway) GetSubscription(ctx context.Context, id [32]byte) (*chain.OnChainSubscription, error) {
	return nil, nil
}
func (f *fakeGateway) GetPaymentCount(ctx context.Context, id [32]byte) (uint64, error) { return 0, nil }
func (f *fakeGateway) ExecuteSubscription(ctx context.Context, id [32]byte) (*chain.ExecutionReceipt, error) {
	return nil, nil
}
func (f *fakeGateway) CheckBalance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeGateway) CheckAllowance(ctx context.Context, owner, token common.Address, needed *big.Int) (bool, error) {
	return true, nil
}
func (f *fakeGateway) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	return 0, nil
}
func (f *fakeGateway) FetchLogs(ctx context.Context, filter chain.LogFilter) ([]chain.Log, error) {
	return nil, nil
}
func (f *fakeGateway) Tag() string       { return "sepolia" }
func (f *fakeGateway) ChainID() *big.Int { return f.chainID }

type fakeDA struct {
	result *da.SubmissionResult
	err    error
}

func (f *fakeDA) SubmitIntent(ctx context.Context, in intent.SubscriptionIntent, signature, relayer string, chainID uint64) (*da.SubmissionResult, error) {
	return f.result, f.err
}

// signedTestIntent builds a well-formed intent signed by a fresh key, valid
// under testChainID/testManagerAddr.
func signedTestIntent(t *testing.T, now time.Time) (intent.SubscriptionIntent, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	subscriber := crypto.PubkeyToAddress(key.PublicKey)

	raw := intent.SubscriptionIntent{
		Subscriber:     subscriber.Hex(),
		Merchant:       "0x2222222222222222222222222222222222222222",
		Amount:         "1000000000000000000",
		Interval:       86400,
		StartTime:      uint64(now.Unix()),
		MaxPayments:    12,
		MaxTotalAmount: "12000000000000000000",
		Expiry:         uint64(now.Unix()) + 31_536_000,
		Nonce:          1,
		Token:          intent.ZeroAddress,
	}

	parsed, err := intent.Validate(raw, now)
	require.NoError(t, err)

	structHash, err := intent.StructHash(*parsed)
	require.NoError(t, err)
	domainSeparator, err := intent.DomainSeparator(big.NewInt(testChainID), testManagerAddr)
	require.NoError(t, err)
	digest := intent.Digest(domainSeparator, structHash)

	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)

	return raw, "0x" + common.Bytes2Hex(sig)
}

func newTestService(t *testing.T, mock *sqlmock.Sqlmock, dac DASubmitter) *Service {
	t.Helper()
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	*mock = m

	client := store.NewClientFromDB(db)

	registry := chain.NewRegistry()
	registry.Register(&fakeGateway{chainID: big.NewInt(testChainID)})

	cfg := &config.Config{
		RelayerAddress: "0x3333333333333333333333333333333333333333",
		Chains: map[string]config.ChainConfig{
			"sepolia": {Tag: "sepolia", SubscriptionManagerAddr: testManagerAddr},
		},
	}

	return New(cfg, client, registry, dac, "sepolia")
}

func TestIngestRejectsUsedNonce(t *testing.T) {
	var mock sqlmock.Sqlmock
	svc := newTestService(t, &mock, &fakeDA{})

	now := time.Now()
	raw, sig := signedTestIntent(t, now)

	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := svc.Ingest(context.Background(), raw, sig)
	require.ErrorIs(t, err, ErrNonceUsed)
}

func TestIngestRejectsDASubmissionFailure(t *testing.T) {
	var mock sqlmock.Sqlmock
	svc := newTestService(t, &mock, &fakeDA{err: context.DeadlineExceeded})

	now := time.Now()
	raw, sig := signedTestIntent(t, now)

	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT id, subscriber").WillReturnError(sql.ErrNoRows)

	_, err := svc.Ingest(context.Background(), raw, sig)
	require.ErrorIs(t, err, ErrDASubmissionFailed)
}

func TestIngestSucceeds(t *testing.T) {
	var mock sqlmock.Sqlmock
	result := &da.SubmissionResult{BlockNumber: 1_000_042, ExtrinsicIndex: 7}
	svc := newTestService(t, &mock, &fakeDA{result: result})

	now := time.Now()
	raw, sig := signedTestIntent(t, now)

	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT id, subscriber").WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO intent_cache").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO subscriptions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	out, err := svc.Ingest(context.Background(), raw, sig)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_042), out.DABlock)
	require.Equal(t, int64(7), out.DAIndex)
	require.Equal(t, store.StatusActive, out.Status)
}
