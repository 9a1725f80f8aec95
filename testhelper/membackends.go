package testhelper

import (
	"context"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/keepkey-community/wallet-gateway/chains/bitcoin"
)

// EthBackend serves canned chain data for EVM handler tests.
type EthBackend struct {
	Nonce    uint64
	Estimate uint64
	GasPrice *big.Int
	TipCap   *big.Int
	// EstimateErr makes EstimateGas fail, as a node does for reverting
	// calls.
	EstimateErr error
}

func NewEthBackend() *EthBackend {
	return &EthBackend{
		Nonce:    7,
		Estimate: 21_000,
		GasPrice: big.NewInt(2_000_000_000),
		TipCap:   big.NewInt(1_000_000_000),
	}
}

func (b *EthBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.Nonce, nil
}

func (b *EthBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return b.Estimate, nil
}

func (b *EthBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *EthBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.TipCap), nil
}

var _ bitcoin.Backend = (*UTXOBackend)(nil)

// UTXOBackend serves canned unspents for UTXO handler tests.
type UTXOBackend struct {
	Unspents map[string][]bitcoin.Unspent
	Rate     btcutil.Amount
	Change   string
}

func NewUTXOBackend() *UTXOBackend {
	return &UTXOBackend{
		Unspents: make(map[string][]bitcoin.Unspent),
		Rate:     10,
		Change:   "1ChangeAddrXXXXXXXXXXXXXXXXXXXXXXX",
	}
}

func (b *UTXOBackend) ListUnspent(ctx context.Context, networkID, pubkey string) ([]bitcoin.Unspent, error) {
	return b.Unspents[pubkey], nil
}

func (b *UTXOBackend) FeeRate(ctx context.Context, networkID string) (btcutil.Amount, error) {
	return b.Rate, nil
}

func (b *UTXOBackend) ChangeAddress(ctx context.Context, networkID string) (string, error) {
	return b.Change, nil
}
