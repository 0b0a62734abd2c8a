package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// subscriptionManagerABI describes the surface of the SubscriptionManager
// contract the gateway depends on: reading a subscription's on-chain state,
// its executed-payment count, and submitting a payment execution.
const subscriptionManagerABI = `[
	{
		"type": "function",
		"name": "getSubscription",
		"stateMutability": "view",
		"inputs": [{"name": "id", "type": "bytes32"}],
		"outputs": [
			{"name": "subscriber", "type": "address"},
			{"name": "merchant", "type": "address"},
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "interval", "type": "uint256"},
			{"name": "startTime", "type": "uint256"},
			{"name": "maxPayments", "type": "uint256"},
			{"name": "maxTotalAmount", "type": "uint256"},
			{"name": "expiry", "type": "uint256"},
			{"name": "nonce", "type": "uint256"},
			{"name": "status", "type": "uint8"},
			{"name": "executedPayments", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "executedPayments",
		"stateMutability": "view",
		"inputs": [{"name": "id", "type": "bytes32"}],
		"outputs": [{"name": "count", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "executeSubscription",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "id", "type": "bytes32"},
			{"name": "relayer", "type": "address"}
		],
		"outputs": []
	},
	{
		"type": "event",
		"name": "SubscriptionCreated",
		"inputs": [
			{"name": "id", "type": "bytes32", "indexed": true},
			{"name": "subscriber", "type": "address", "indexed": true},
			{"name": "merchant", "type": "address", "indexed": true}
		],
		"anonymous": false
	},
	{
		"type": "event",
		"name": "PaymentExecuted",
		"inputs": [
			{"name": "id", "type": "bytes32", "indexed": true},
			{"name": "paymentNumber", "type": "uint256", "indexed": false},
			{"name": "amount", "type": "uint256", "indexed": false}
		],
		"anonymous": false
	}
]`

// erc20ABI describes the subset of ERC-20 the gateway reads.
const erc20ABI = `[
	{
		"type": "function",
		"name": "balanceOf",
		"stateMutability": "view",
		"inputs": [{"name": "owner", "type": "address"}],
		"outputs": [{"name": "balance", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "allowance",
		"stateMutability": "view",
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"outputs": [{"name": "remaining", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "decimals",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint8"}]
	},
	{
		"type": "function",
		"name": "symbol",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "string"}]
	}
]`

var (
	// SubscriptionCreatedTopic and PaymentExecutedTopic are the keccak256
	// event signatures used to filter SubscriptionManager logs.
	SubscriptionCreatedTopic = crypto.Keccak256Hash([]byte("SubscriptionCreated(bytes32,address,address)"))
	PaymentExecutedTopic    = crypto.Keccak256Hash([]byte("PaymentExecuted(bytes32,uint256,uint256)"))
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

var (
	subscriptionManagerParsed = mustParseABI(subscriptionManagerABI)
	erc20Parsed               = mustParseABI(erc20ABI)
)
