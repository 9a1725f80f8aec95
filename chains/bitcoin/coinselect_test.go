package bitcoin

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

const (
	destAddr   = "1DestAddrXXXXXXXXXXXXXXXXXXXXXXXXX"
	changeAddr = "1ChangeAddrXXXXXXXXXXXXXXXXXXXXXXX"
)

func utxoSet(amounts ...btcutil.Amount) []Unspent {
	out := make([]Unspent, 0, len(amounts))
	for i, a := range amounts {
		out = append(out, Unspent{
			TxID:   fmt.Sprintf("%064d", i),
			Vout:   uint32(i),
			Amount: a,
			Path:   "m/44'/0'/0'/0/0",
		})
	}
	return out
}

func requireConserved(t *testing.T, sel *Selection) {
	t.Helper()
	require.Equal(t, sel.InputTotal(), sel.OutputTotal()+sel.Fee,
		"inputs must equal outputs plus fee")
	require.GreaterOrEqual(t, sel.Fee, btcutil.Amount(0))
}

func TestSelect(t *testing.T) {
	t.Run("largest inputs chosen first", func(t *testing.T) {
		sel, err := Select(utxoSet(1_000, 50_000, 20_000), 30_000, 1, 546, destAddr, changeAddr)
		require.NoError(t, err)
		require.Len(t, sel.Inputs, 1)
		require.Equal(t, btcutil.Amount(50_000), sel.Inputs[0].Amount)
		requireConserved(t, sel)
	})

	t.Run("change output above dust survives", func(t *testing.T) {
		sel, err := Select(utxoSet(100_000), 50_000, 1, 546, destAddr, changeAddr)
		require.NoError(t, err)
		require.Len(t, sel.Outputs, 2)
		require.Equal(t, btcutil.Amount(50_000), sel.Outputs[0].Amount)
		require.True(t, sel.Outputs[1].IsChange)
		require.Equal(t, changeAddr, sel.Outputs[1].Address)
		require.GreaterOrEqual(t, sel.Outputs[1].Amount, btcutil.Amount(546))
		requireConserved(t, sel)
	})

	t.Run("dust change folds into fee", func(t *testing.T) {
		// fee for 1-in 2-out at rate 1 is 240; leave change just under dust
		sel, err := Select(utxoSet(50_500), 50_000, 1, 546, destAddr, changeAddr)
		require.NoError(t, err)
		require.Len(t, sel.Outputs, 1)
		require.Equal(t, btcutil.Amount(500), sel.Fee)
		requireConserved(t, sel)
	})

	t.Run("fee scales with rate", func(t *testing.T) {
		low, err := Select(utxoSet(1_000_000), 50_000, 1, 546, destAddr, changeAddr)
		require.NoError(t, err)
		high, err := Select(utxoSet(1_000_000), 50_000, 10, 546, destAddr, changeAddr)
		require.NoError(t, err)
		require.Equal(t, low.Fee*10, high.Fee)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := Select(utxoSet(1_000, 2_000), 50_000, 1, 546, destAddr, changeAddr)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("zero value inputs ignored", func(t *testing.T) {
		sel, err := Select(utxoSet(0, 100_000, 0), 50_000, 1, 546, destAddr, changeAddr)
		require.NoError(t, err)
		require.Len(t, sel.Inputs, 1)
	})

	t.Run("non positive target rejected", func(t *testing.T) {
		_, err := Select(utxoSet(100_000), 0, 1, 546, destAddr, changeAddr)
		require.Error(t, err)
	})
}

func TestSelectMax(t *testing.T) {
	t.Run("spends everything minus fee", func(t *testing.T) {
		sel, err := SelectMax(utxoSet(30_000, 20_000), 1, destAddr)
		require.NoError(t, err)
		require.True(t, sel.MaxSend)
		require.Len(t, sel.Inputs, 2)
		require.Len(t, sel.Outputs, 1)
		// 2-in 1-out vsize = 10 + 296 + 34 = 340
		require.Equal(t, btcutil.Amount(340), sel.Fee)
		require.Equal(t, btcutil.Amount(49_660), sel.Outputs[0].Amount)
		requireConserved(t, sel)
	})

	t.Run("fails when fee eats everything", func(t *testing.T) {
		_, err := SelectMax(utxoSet(100), 10, destAddr)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("fails with no inputs", func(t *testing.T) {
		_, err := SelectMax(nil, 1, destAddr)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})
}

func TestEstimateVSize(t *testing.T) {
	require.Equal(t, int64(226), estimateVSize(1, 2))
	require.Equal(t, int64(192), estimateVSize(1, 1))
}
