package intent

import "math/big"

// SubscriptionIntent is the off-chain intent as it arrives over the wire:
// address fields are 0x-prefixed hex, amount fields are decimal strings.
// This mirrors the POST /intent request body's `intent` field.
type SubscriptionIntent struct {
	Subscriber     string `json:"subscriber"`
	Merchant       string `json:"merchant"`
	Amount         string `json:"amount"`
	Interval       uint64 `json:"interval"`
	StartTime      uint64 `json:"startTime"`
	MaxPayments    uint64 `json:"maxPayments"`
	MaxTotalAmount string `json:"maxTotalAmount"`
	Expiry         uint64 `json:"expiry"`
	Nonce          uint64 `json:"nonce"`
	Token          string `json:"token"`
}

// Parsed is the intent after field-level parsing and normalization:
// addresses lowercased, amounts as big.Int. Produced by Validate on success.
type Parsed struct {
	Subscriber     string
	Merchant       string
	Amount         *big.Int
	Interval       uint64
	StartTime      uint64
	MaxPayments    uint64
	MaxTotalAmount *big.Int
	Expiry         uint64
	Nonce          uint64
	Token          string
}
