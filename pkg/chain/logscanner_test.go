package chain

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway implements Gateway for tests, serving logs from an in-memory
// set and optionally capping the range it will accept in one call.
type fakeGateway struct {
	tag       string
	chainID   *big.Int
	logs      []Log
	rangeCap  uint64
	callCount int
}

func (f *fakeGateway) GetSubscription(ctx context.Context, id [32]byte) (*OnChainSubscription, error) {
	return nil, ErrNotFound
}
func (f *fakeGateway) GetPaymentCount(ctx context.Context, id [32]byte) (uint64, error) { return 0, nil }
func (f *fakeGateway) ExecuteSubscription(ctx context.Context, id [32]byte) (*ExecutionReceipt, error) {
	return nil, ErrNotFound
}
func (f *fakeGateway) CheckBalance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeGateway) CheckAllowance(ctx context.Context, owner, token common.Address, needed *big.Int) (bool, error) {
	return true, nil
}
func (f *fakeGateway) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	return blockNumber, nil
}
func (f *fakeGateway) Tag() string       { return f.tag }
func (f *fakeGateway) ChainID() *big.Int { return f.chainID }

func (f *fakeGateway) FetchLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	f.callCount++
	span := filter.ToBlock - filter.FromBlock + 1
	if f.rangeCap > 0 && span > f.rangeCap {
		return nil, fmt.Errorf("block range too large, maximum is %d", f.rangeCap)
	}

	var matched []Log
	for _, l := range f.logs {
		if l.BlockNumber >= filter.FromBlock && l.BlockNumber <= filter.ToBlock {
			matched = append(matched, l)
		}
	}
	return matched, nil
}

func TestLogScannerCollectsAllLogsAcrossChunks(t *testing.T) {
	gw := &fakeGateway{tag: "sepolia", chainID: big.NewInt(1)}
	for i := uint64(0); i < 5000; i += 500 {
		gw.logs = append(gw.logs, Log{BlockNumber: i})
	}

	scanner := NewLogScanner(gw)
	logs, err := scanner.Scan(context.Background(), LogFilter{FromBlock: 0, ToBlock: 4999})
	require.NoError(t, err)
	assert.Len(t, logs, len(gw.logs))
}

func TestLogScannerLocksToProviderDeclaredCap(t *testing.T) {
	gw := &fakeGateway{tag: "sepolia", chainID: big.NewInt(1), rangeCap: 10}
	gw.logs = append(gw.logs, Log{BlockNumber: 5}, Log{BlockNumber: 25})

	scanner := NewLogScanner(gw)
	logs, err := scanner.Scan(context.Background(), LogFilter{FromBlock: 0, ToBlock: 29})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.True(t, scanner.locked)
	assert.Equal(t, uint64(10), scanner.window)
}
