package common

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulPercentage(t *testing.T) {
	assert.Equal(t, big.NewInt(74777), MulPercentage(big.NewInt(43987), 170))
	assert.Equal(t, big.NewInt(258281956132), MulPercentage(big.NewInt(782672594341), 33))
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL("http://localhost:8545"))
	assert.True(t, IsValidURL("wss://mainnet.infura.io/ws/v3/key"))
	assert.False(t, IsValidURL("not-a-url"))
	assert.False(t, IsValidURL(""))
}
