package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// gasEstimateMultiplierNum/Den apply the 1.2x safety margin the spec
// requires on top of eth_estimateGas before submission.
const (
	gasEstimateMultiplierNum = 12
	gasEstimateMultiplierDen = 10
)

// EVMGateway implements Gateway against one EVM chain's SubscriptionManager
// and ERC-20 contracts, using the relayer's single signing key.
type EVMGateway struct {
	tag                     string
	client                  *ethclient.Client
	chainID                 *big.Int
	subscriptionManagerAddr common.Address
	privateKey              *ecdsa.PrivateKey
	relayerAddr             common.Address
}

// NewEVMGateway dials rpcURL and builds an adapter for one chain tag.
func NewEVMGateway(ctx context.Context, tag, rpcURL, subscriptionManagerAddr, privateKeyHex string) (*EVMGateway, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrRpcFailure, rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", ErrRpcFailure, err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key: %w", err)
	}
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid relayer private key: not ECDSA")
	}

	return &EVMGateway{
		tag:                     tag,
		client:                  client,
		chainID:                 chainID,
		subscriptionManagerAddr: common.HexToAddress(subscriptionManagerAddr),
		privateKey:              privateKey,
		relayerAddr:             crypto.PubkeyToAddress(*publicKey),
	}, nil
}

func (g *EVMGateway) Tag() string          { return g.tag }
func (g *EVMGateway) ChainID() *big.Int    { return g.chainID }

func (g *EVMGateway) GetSubscription(ctx context.Context, id [32]byte) (*OnChainSubscription, error) {
	outputs, err := g.call(ctx, "getSubscription", id)
	if err != nil {
		return nil, err
	}

	sub := &OnChainSubscription{
		Subscriber:       outputs[0].(common.Address),
		Merchant:         outputs[1].(common.Address),
		Token:            outputs[2].(common.Address),
		Amount:           outputs[3].(*big.Int),
		Interval:         outputs[4].(*big.Int).Uint64(),
		StartTime:        outputs[5].(*big.Int).Uint64(),
		MaxPayments:      outputs[6].(*big.Int).Uint64(),
		MaxTotalAmount:   outputs[7].(*big.Int),
		Expiry:           outputs[8].(*big.Int).Uint64(),
		Nonce:            outputs[9].(*big.Int).Uint64(),
		Status:           SubscriptionStatus(outputs[10].(uint8)),
		ExecutedPayments: outputs[11].(*big.Int).Uint64(),
	}

	if sub.Nonce == 0 {
		return nil, ErrNotFound
	}
	return sub, nil
}

func (g *EVMGateway) GetPaymentCount(ctx context.Context, id [32]byte) (uint64, error) {
	outputs, err := g.call(ctx, "executedPayments", id)
	if err != nil {
		return 0, err
	}
	return outputs[0].(*big.Int).Uint64(), nil
}

func (g *EVMGateway) ExecuteSubscription(ctx context.Context, id [32]byte) (*ExecutionReceipt, error) {
	callData, err := subscriptionManagerParsed.Pack("executeSubscription", id, g.relayerAddr)
	if err != nil {
		return nil, fmt.Errorf("pack executeSubscription: %w", err)
	}

	msg := ethereum.CallMsg{From: g.relayerAddr, To: &g.subscriptionManagerAddr, Data: callData}
	gasEstimate, err := g.client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: estimate gas: %v", ErrInsufficientGas, err)
	}
	gasLimit := gasEstimate * gasEstimateMultiplierNum / gasEstimateMultiplierDen

	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest gas price: %v", ErrRpcFailure, err)
	}

	nonce, err := g.client.PendingNonceAt(ctx, g.relayerAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: pending nonce: %v", ErrRpcFailure, err)
	}

	tx := types.NewTransaction(nonce, g.subscriptionManagerAddr, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), g.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := g.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("%w: submit: %v", ErrRpcFailure, err)
	}

	receipt, err := bind.WaitMined(ctx, g.client, signedTx)
	if err != nil {
		return nil, fmt.Errorf("%w: await receipt: %v", ErrRpcFailure, err)
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s", ErrTransactionFailed, signedTx.Hash().Hex())
	}

	return &ExecutionReceipt{
		TxHash:      signedTx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		GasPrice:    gasPrice,
		Success:     true,
	}, nil
}

func (g *EVMGateway) CheckBalance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	if token == (common.Address{}) {
		balance, err := g.client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: balance: %v", ErrRpcFailure, err)
		}
		return balance, nil
	}

	outputs, err := g.callERC20(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return outputs[0].(*big.Int), nil
}

func (g *EVMGateway) CheckAllowance(ctx context.Context, owner, token common.Address, needed *big.Int) (bool, error) {
	if token == (common.Address{}) {
		return true, nil
	}

	outputs, err := g.callERC20(ctx, token, "allowance", owner, g.relayerAddr)
	if err != nil {
		return false, err
	}
	allowance := outputs[0].(*big.Int)
	return allowance.Cmp(needed) >= 0, nil
}

func (g *EVMGateway) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	header, err := g.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return 0, fmt.Errorf("%w: header: %v", ErrRpcFailure, err)
	}
	return header.Time, nil
}

func (g *EVMGateway) FetchLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(filter.FromBlock),
		ToBlock:   new(big.Int).SetUint64(filter.ToBlock),
		Addresses: []common.Address{filter.Address},
		Topics:    [][]common.Hash{{filter.Topic}},
	}

	logs, err := g.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: filter logs: %v", ErrRpcFailure, err)
	}

	result := make([]Log, 0, len(logs))
	for _, l := range logs {
		result = append(result, Log{
			Address:     l.Address,
			Topics:      l.Topics,
			Data:        l.Data,
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash,
			Index:       l.Index,
		})
	}
	return result, nil
}

func (g *EVMGateway) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	callData, err := subscriptionManagerParsed.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := g.client.CallContract(ctx, ethereum.CallMsg{
		To:   &g.subscriptionManagerAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: call %s: %v", classifyCallError(err), method, err)
	}

	outputs, err := subscriptionManagerParsed.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return outputs, nil
}

func (g *EVMGateway) callERC20(ctx context.Context, token common.Address, method string, params ...interface{}) ([]interface{}, error) {
	callData, err := erc20Parsed.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := g.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: call %s: %v", classifyCallError(err), method, err)
	}

	outputs, err := erc20Parsed.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return outputs, nil
}

// classifyCallError distinguishes an on-chain revert from a transport-level
// RPC failure, since the two carry different retry semantics upstream.
func classifyCallError(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "revert") {
		return ErrContractRevert
	}
	return ErrRpcFailure
}
