package scheduler

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/aurum-protocol/relayer/pkg/chain"
)

func TestRetriableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rpc failure retries", chain.ErrRpcFailure, true},
		{"insufficient gas retries", chain.ErrInsufficientGas, true},
		{"contract revert never retries", chain.ErrContractRevert, false},
		{"tx failed with nonce message does not retry", fmt.Errorf("%w: nonce too low", chain.ErrTransactionFailed), false},
		{"tx failed with unrelated message retries", fmt.Errorf("%w: timeout", chain.ErrTransactionFailed), true},
		{"unclassified error does not retry", fmt.Errorf("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, retriable(tc.err))
		})
	}
}

type flakyGateway struct {
	stubGateway
	failuresBeforeSuccess int
	calls                 int
}

func (g *flakyGateway) ExecuteSubscription(ctx context.Context, id [32]byte) (*chain.ExecutionReceipt, error) {
	g.calls++
	if g.calls <= g.failuresBeforeSuccess {
		return nil, chain.ErrRpcFailure
	}
	return &chain.ExecutionReceipt{
		TxHash:      common.HexToHash("0xaa"),
		BlockNumber: 100,
		GasUsed:     21000,
		GasPrice:    big.NewInt(1),
	}, nil
}

func TestExecuteWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	sub := subscriptionFixture(time.Now())
	gateway := &flakyGateway{
		stubGateway:           stubGateway{tag: "sepolia", chainID: big.NewInt(11155111)},
		failuresBeforeSuccess: 2,
	}

	execution, err := ExecuteWithRetry(context.Background(), sub, gateway)
	require.NoError(t, err)
	require.Equal(t, 3, gateway.calls)
	require.Equal(t, uint64(1), execution.PaymentNumber)
}

func TestExecuteWithRetryGivesUpOnContractRevert(t *testing.T) {
	sub := subscriptionFixture(time.Now())
	gateway := &revertingGateway{stubGateway: stubGateway{tag: "sepolia", chainID: big.NewInt(11155111)}}

	_, err := ExecuteWithRetry(context.Background(), sub, gateway)
	require.ErrorIs(t, err, chain.ErrContractRevert)
	require.Equal(t, 1, gateway.calls)
}

type revertingGateway struct {
	stubGateway
	calls int
}

func (g *revertingGateway) ExecuteSubscription(ctx context.Context, id [32]byte) (*chain.ExecutionReceipt, error) {
	g.calls++
	return nil, chain.ErrContractRevert
}
