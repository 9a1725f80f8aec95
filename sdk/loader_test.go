package sdk

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keepkey-community/wallet-gateway/walletstate"
)

func TestLoaderSync(t *testing.T) {
	client := &Client{}
	client.Internal.Keys = func(ctx context.Context) ([]*walletstate.KeyInfo, error) {
		return []*walletstate.KeyInfo{
			{PubKey: "xpub1", Address: "0xabc", Networks: []string{"eip155:1"}, Path: "m/44'/60'/0'/0/0"},
			{PubKey: "xpub2", Address: "bc1q", Networks: []string{"bip122:000000000019d6689c085ae165831e93"}},
		}, nil
	}
	client.Internal.Balances = func(ctx context.Context) ([]*walletstate.Balance, error) {
		return []*walletstate.Balance{
			{AssetID: "eip155:1/slip44:60", Symbol: "ETH", Exponent: 18, Amount: decimal.NewFromInt(2)},
		}, nil
	}

	state := walletstate.New(nil, nil)
	loader := NewLoader(client, state, zap.NewNop().Sugar())
	require.NoError(t, loader.Sync(context.Background()))

	require.Equal(t, []string{"0xabc"}, state.AccountsFor("eip155:1"))
	require.Len(t, state.KeysFor("bip122:000000000019d6689c085ae165831e93"), 1)

	bal, ok := state.BalanceFor("eip155:1/slip44:60")
	require.True(t, ok)
	require.Equal(t, "ETH", bal.Symbol)
}

func TestLoaderSyncError(t *testing.T) {
	client := &Client{}
	client.Internal.Keys = func(ctx context.Context) ([]*walletstate.KeyInfo, error) {
		return nil, errors.New("device unplugged")
	}

	loader := NewLoader(client, walletstate.New(nil, nil), zap.NewNop().Sugar())
	require.Error(t, loader.Sync(context.Background()))
}
