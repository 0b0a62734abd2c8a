package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw(now time.Time) SubscriptionIntent {
	return SubscriptionIntent{
		Subscriber:     "0x00000000000000000000000000000000000000aa",
		Merchant:       "0x00000000000000000000000000000000000000bb",
		Amount:         "1000000000000000000",
		Interval:       86400,
		StartTime:      uint64(now.Unix()),
		MaxPayments:    12,
		MaxTotalAmount: "12000000000000000000",
		Expiry:         uint64(now.Unix()) + 31_536_000,
		Nonce:          1,
		Token:          ZeroAddress,
	}
}

func TestValidateAcceptsWellFormedIntent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	parsed, err := Validate(validRaw(now), now)
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", parsed.Subscriber)
	assert.Equal(t, "1000000000000000000", parsed.Amount.String())
}

func TestValidateMinimumIntervalBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	ok := validRaw(now)
	ok.Interval = 3600
	ok.Expiry = ok.StartTime + 3600
	_, err := Validate(ok, now)
	require.NoError(t, err)

	bad := validRaw(now)
	bad.Interval = 3599
	_, err = Validate(bad, now)
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestValidateRejectsExpiryBeforeStartPlusInterval(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	bad := validRaw(now)
	bad.Expiry = bad.StartTime + bad.Interval - 1
	_, err := Validate(bad, now)
	require.ErrorIs(t, err, ErrInconsistentParameters)
}

func TestValidateRejectsMaxTotalAmountTooLow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	bad := validRaw(now)
	bad.MaxTotalAmount = "1"
	_, err := Validate(bad, now)
	require.ErrorIs(t, err, ErrInconsistentParameters)
}

func TestValidateRejectsLeadingZeroAmount(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	bad := validRaw(now)
	bad.Amount = "01"
	_, err := Validate(bad, now)
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestValidateRejectsMalformedAddress(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	bad := validRaw(now)
	bad.Subscriber = "not-an-address"
	_, err := Validate(bad, now)
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestValidateRejectsMaxPaymentsOutOfRange(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	bad := validRaw(now)
	bad.MaxPayments = 0
	_, err := Validate(bad, now)
	require.ErrorIs(t, err, ErrInvalidField)

	bad2 := validRaw(now)
	bad2.MaxPayments = 10_001
	_, err = Validate(bad2, now)
	require.ErrorIs(t, err, ErrInvalidField)
}
