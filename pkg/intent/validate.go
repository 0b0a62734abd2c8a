package intent

import (
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
)

const (
	minIntervalSeconds = 3600
	maxIntervalSeconds = 31_536_000
	minMaxPayments     = 1
	maxMaxPayments     = 10_000
	tenYears           = 10 * 365 * 24 * time.Hour
)

// maxAmount is 10^30, the sanity ceiling on any single amount field.
var maxAmount = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)

// Validate performs the field-level sanity checks from the intent validator:
// well-formed addresses, properly formatted amounts, interval/expiry bounds,
// and the max_payments × amount ≤ max_total_amount check. now is the
// reference time for the start_time/expiry bounds checks.
func Validate(in SubscriptionIntent, now time.Time) (*Parsed, error) {
	subscriber, err := normalizeAddress(in.Subscriber)
	if err != nil {
		return nil, fmt.Errorf("%w: subscriber: %v", ErrInvalidField, err)
	}
	merchant, err := normalizeAddress(in.Merchant)
	if err != nil {
		return nil, fmt.Errorf("%w: merchant: %v", ErrInvalidField, err)
	}
	token, err := normalizeAddress(in.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: token: %v", ErrInvalidField, err)
	}

	amount, err := parseDecimalAmount(in.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrInvalidField, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be nonzero", ErrInvalidField)
	}
	if amount.Cmp(maxAmount) > 0 {
		return nil, fmt.Errorf("%w: amount exceeds 10^30", ErrInvalidField)
	}

	maxTotalAmount, err := parseDecimalAmount(in.MaxTotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: maxTotalAmount: %v", ErrInvalidField, err)
	}

	if in.Interval < minIntervalSeconds || in.Interval > maxIntervalSeconds {
		return nil, fmt.Errorf("%w: interval must be in [%d, %d]", ErrInvalidField, minIntervalSeconds, maxIntervalSeconds)
	}

	if in.MaxPayments < minMaxPayments || in.MaxPayments > maxMaxPayments {
		return nil, fmt.Errorf("%w: maxPayments must be in [%d, %d]", ErrInvalidField, minMaxPayments, maxMaxPayments)
	}

	nowUnix := uint64(now.Unix())
	if in.StartTime < nowUnix {
		return nil, fmt.Errorf("%w: startTime must not be in the past", ErrInvalidField)
	}
	if in.Expiry > uint64(now.Add(tenYears).Unix()) {
		return nil, fmt.Errorf("%w: expiry exceeds 10 years out", ErrInvalidField)
	}
	if in.Expiry <= in.StartTime {
		return nil, fmt.Errorf("%w: expiry must be after startTime", ErrInconsistentParameters)
	}
	if in.Expiry-in.StartTime < in.Interval {
		return nil, fmt.Errorf("%w: expiry-startTime must be at least one interval", ErrInconsistentParameters)
	}

	maxPaymentsTotal := new(big.Int).Mul(amount, new(big.Int).SetUint64(in.MaxPayments))
	if maxPaymentsTotal.Cmp(maxTotalAmount) > 0 {
		return nil, fmt.Errorf("%w: amount*maxPayments exceeds maxTotalAmount", ErrInconsistentParameters)
	}

	return &Parsed{
		Subscriber:     subscriber,
		Merchant:       merchant,
		Amount:         amount,
		Interval:       in.Interval,
		StartTime:      in.StartTime,
		MaxPayments:    in.MaxPayments,
		MaxTotalAmount: maxTotalAmount,
		Expiry:         in.Expiry,
		Nonce:          in.Nonce,
		Token:          token,
	}, nil
}

func normalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("not a well-formed 20-byte address: %q", addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// parseDecimalAmount rejects leading zeros, scientific notation, signs, and
// non-digit characters — only a plain unsigned decimal literal is accepted.
func parseDecimalAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if s != "0" && s[0] == '0' {
		return nil, fmt.Errorf("leading zero not allowed: %q", s)
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return nil, fmt.Errorf("non-digit character in amount: %q", s)
		}
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a valid decimal integer: %q", s)
	}
	return amount, nil
}
