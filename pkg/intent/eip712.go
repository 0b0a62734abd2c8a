// Package intent verifies subscription intents: EIP-712 typed-data
// signatures, deterministic subscription-id derivation, and the field-level
// sanity checks a subscription must pass before it is durably recorded.
package intent

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// structTypeHash is keccak256 of the canonical SubscriptionIntent type string.
var structTypeHash = crypto.Keccak256([]byte(
	"SubscriptionIntent(address subscriber,address merchant,uint256 amount,uint256 interval,uint256 startTime,uint256 maxPayments,uint256 maxTotalAmount,uint256 expiry,uint256 nonce,address token)",
))

var domainTypeHash = crypto.Keccak256([]byte(
	"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
))

var (
	domainNameHash    = crypto.Keccak256([]byte("Aurum"))
	domainVersionHash = crypto.Keccak256([]byte("1"))
)

// StructHash computes keccak256 over the type hash followed by the ten
// 32-byte-padded intent fields, in field order.
func StructHash(p Parsed) ([]byte, error) {
	subscriber, err := addressWord(p.Subscriber)
	if err != nil {
		return nil, fmt.Errorf("subscriber: %w", err)
	}
	merchant, err := addressWord(p.Merchant)
	if err != nil {
		return nil, fmt.Errorf("merchant: %w", err)
	}
	token, err := addressWord(p.Token)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	buf := make([]byte, 0, 32*11)
	buf = append(buf, structTypeHash...)
	buf = append(buf, subscriber...)
	buf = append(buf, merchant...)
	buf = append(buf, uintWord(p.Amount)...)
	buf = append(buf, uintWord(new(big.Int).SetUint64(p.Interval))...)
	buf = append(buf, uintWord(new(big.Int).SetUint64(p.StartTime))...)
	buf = append(buf, uintWord(new(big.Int).SetUint64(p.MaxPayments))...)
	buf = append(buf, uintWord(p.MaxTotalAmount)...)
	buf = append(buf, uintWord(new(big.Int).SetUint64(p.Expiry))...)
	buf = append(buf, uintWord(new(big.Int).SetUint64(p.Nonce))...)
	buf = append(buf, token...)

	return crypto.Keccak256(buf), nil
}

// DomainSeparator computes keccak256(domainTypeHash ‖ name ‖ version ‖
// chainId ‖ verifyingContract), binding signatures to one chain and contract.
func DomainSeparator(chainID *big.Int, verifyingContract string) ([]byte, error) {
	contractWord, err := addressWord(verifyingContract)
	if err != nil {
		return nil, fmt.Errorf("verifyingContract: %w", err)
	}

	buf := make([]byte, 0, 32*5)
	buf = append(buf, domainTypeHash...)
	buf = append(buf, domainNameHash...)
	buf = append(buf, domainVersionHash...)
	buf = append(buf, uintWord(chainID)...)
	buf = append(buf, contractWord...)

	return crypto.Keccak256(buf), nil
}

// Digest computes the final EIP-712 message digest:
// keccak256(0x19 0x01 ‖ domainSeparator ‖ structHash).
func Digest(domainSeparator, structHash []byte) []byte {
	buf := make([]byte, 0, 2+len(domainSeparator)+len(structHash))
	buf = append(buf, 0x19, 0x01)
	buf = append(buf, domainSeparator...)
	buf = append(buf, structHash...)
	return crypto.Keccak256(buf)
}

// RecoverSigner recovers the signing address from a 65-byte (r, s, v)
// signature over digest. Accepts both the 0/1 and 27/28 recovery-id
// conventions.
func RecoverSigner(digest, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrInvalidSignature, len(signature))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// SubscriptionID derives the deterministic subscription identifier:
// keccak256(structHash ‖ signatureBytes). Rendered as 0x + 64 lowercase hex.
func SubscriptionID(structHash, signature []byte) string {
	buf := make([]byte, 0, len(structHash)+len(signature))
	buf = append(buf, structHash...)
	buf = append(buf, signature...)
	return "0x" + common.Bytes2Hex(crypto.Keccak256(buf))
}

func addressWord(addr string) ([]byte, error) {
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("not a well-formed address: %q", addr)
	}
	return common.LeftPadBytes(common.HexToAddress(addr).Bytes(), 32), nil
}

func uintWord(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}
