package intent

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenRegistrySymbol(t *testing.T) {
	reg := NewTokenRegistry()
	reg.RegisterPYUSD("sepolia", "0x000000000000000000000000000000000000CC")

	assert.Equal(t, "ETH", reg.Symbol("sepolia", ZeroAddress))
	assert.Equal(t, "PYUSD", reg.Symbol("sepolia", "0x000000000000000000000000000000000000cc"))
	assert.Equal(t, "UNKNOWN", reg.Symbol("sepolia", "0x0000000000000000000000000000000000dead"))
	// PYUSD registered on sepolia does not leak into base.
	assert.Equal(t, "UNKNOWN", reg.Symbol("base", "0x000000000000000000000000000000000000cc"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", FormatAmount(big.NewInt(1_500_000), 6))
	assert.Equal(t, "0.000001", FormatAmount(big.NewInt(1), 6))
	assert.Equal(t, "2", FormatAmount(big.NewInt(2_000_000), 6))
}
