package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetAndTags(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeGateway{tag: "sepolia", chainID: big.NewInt(11155111)})
	reg.Register(&fakeGateway{tag: "base", chainID: big.NewInt(8453)})

	gw, err := reg.Get("sepolia")
	require.NoError(t, err)
	assert.Equal(t, "sepolia", gw.Tag())

	assert.Equal(t, []string{"base", "sepolia"}, reg.Tags())
}

func TestRegistryGetUnknownChain(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("polygon")
	require.ErrorIs(t, err, ErrNotFound)
}
