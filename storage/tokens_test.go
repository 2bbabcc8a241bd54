package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokensMintTransferBurn(t *testing.T) {
	tokens := NewTokens(NewMemDB())
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	require.NoError(t, tokens.Mint("usdx", alice, 1_000))
	supply, err := tokens.TotalSupply("usdx")
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), supply)

	require.NoError(t, tokens.Transfer("usdx", alice, bob, 400))
	aliceBal, err := tokens.BalanceOf("usdx", alice)
	require.NoError(t, err)
	require.Equal(t, uint64(600), aliceBal)
	bobBal, err := tokens.BalanceOf("usdx", bob)
	require.NoError(t, err)
	require.Equal(t, uint64(400), bobBal)

	require.ErrorIs(t, tokens.Transfer("usdx", alice, bob, 601), ErrInsufficientFunds)

	require.NoError(t, tokens.Burn("usdx", bob, 400))
	supply, err = tokens.TotalSupply("usdx")
	require.NoError(t, err)
	require.Equal(t, uint64(600), supply)
	require.ErrorIs(t, tokens.Burn("usdx", bob, 1), ErrInsufficientFunds)
}

func TestTokensPerTokenIsolation(t *testing.T) {
	tokens := NewTokens(NewMemDB())
	alice := testAddr(0x01)

	require.NoError(t, tokens.Mint("usdx", alice, 500))
	require.NoError(t, tokens.Mint("snr-pool-1", alice, 70_000))

	usd, err := tokens.BalanceOf("usdx", alice)
	require.NoError(t, err)
	require.Equal(t, uint64(500), usd)
	yield, err := tokens.BalanceOf("snr-pool-1", alice)
	require.NoError(t, err)
	require.Equal(t, uint64(70_000), yield)
}

func TestTokensSupplyOverflowRejected(t *testing.T) {
	tokens := NewTokens(NewMemDB())
	alice := testAddr(0x01)

	require.NoError(t, tokens.Mint("usdx", alice, math.MaxUint64))
	require.ErrorIs(t, tokens.Mint("usdx", alice, 1), ErrBalanceOverflow)

	supply, err := tokens.TotalSupply("usdx")
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), supply)
}

func TestTokensSelfTransferAndZeroAmountNoop(t *testing.T) {
	tokens := NewTokens(NewMemDB())
	alice := testAddr(0x01)

	require.NoError(t, tokens.Mint("usdx", alice, 100))
	require.NoError(t, tokens.Transfer("usdx", alice, alice, 50))
	require.NoError(t, tokens.Transfer("usdx", alice, testAddr(0x02), 0))

	balance, err := tokens.BalanceOf("usdx", alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), balance)
}
