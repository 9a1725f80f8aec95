package cosmos_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keepkey-community/wallet-gateway/chains/cosmos"
	"github.com/keepkey-community/wallet-gateway/store"
	"github.com/keepkey-community/wallet-gateway/testhelper"
	"github.com/keepkey-community/wallet-gateway/types"
)

func setup(t *testing.T, net cosmos.Network) (*cosmos.Handler, *testhelper.Env, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	state := testhelper.NewTestState(map[string]string{net.NetworkID: net.AssetID})
	env := testhelper.NewEnv(ctx, state)
	return cosmos.New(env.Deps, net), env, ctx
}

func req(chain, method string, params ...interface{}) *types.RequestInfo {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, _ := json.Marshal(p)
		raw = append(raw, b)
	}
	return &types.RequestInfo{ID: "req-1", Method: method, Params: raw, Chain: chain}
}

func TestTransferScalesToBaseDenom(t *testing.T) {
	cases := []struct {
		net    cosmos.Network
		amount string
		base   string
	}{
		{cosmos.CosmosHub, "1.5", "1500000"},
		{cosmos.Osmosis, "0.25", "250000"},
		{cosmos.Thorchain, "2", "200000000"},
	}
	for _, c := range cases {
		t.Run(c.net.Tag, func(t *testing.T) {
			h, env, ctx := setup(t, c.net)
			env.AutoSettle(ctx, true)

			raw, err := h.Handle(ctx, req(c.net.Tag, "transfer", map[string]interface{}{
				"to":     "cosmos1recipientxxxxxxxxxxxxxxxxxxxxxxxxxx",
				"amount": c.amount,
				"memo":   "invoice 42",
			}))
			require.NoError(t, err)
			require.NotEmpty(t, raw)

			completed, err := env.Store.List(ctx, store.QueueCompleted)
			require.NoError(t, err)
			require.Len(t, completed, 1)

			var payload cosmos.SendPayload
			require.NoError(t, json.Unmarshal(completed[0].UnsignedTx, &payload))
			require.Equal(t, c.base, payload.Amount)
			require.Equal(t, c.net.Denom, payload.Denom)
			require.Equal(t, "invoice 42", payload.Memo)
			require.NotEmpty(t, payload.From)
		})
	}
}

func TestTransferRejected(t *testing.T) {
	h, env, ctx := setup(t, cosmos.CosmosHub)
	env.AutoSettle(ctx, false)

	_, err := h.Handle(ctx, req("cosmos", "transfer", map[string]interface{}{
		"to":     "cosmos1recipientxxxxxxxxxxxxxxxxxxxxxxxxxx",
		"amount": "1",
	}))
	perr, ok := err.(*types.Error)
	require.True(t, ok)
	require.Equal(t, types.ErrCodeUserRejected, perr.Code)
	require.Empty(t, env.Wallet.Broadcasts())
}

func TestUnsupportedMethod(t *testing.T) {
	h, _, ctx := setup(t, cosmos.CosmosHub)
	_, err := h.Handle(ctx, req("cosmos", "cosmos_delegate"))
	perr, ok := err.(*types.Error)
	require.True(t, ok)
	require.Equal(t, types.ErrCodeUnsupported, perr.Code)
}

func TestNoDerivedAccount(t *testing.T) {
	ctx := context.Background()
	env := testhelper.NewEnv(ctx, testhelper.NewTestState(nil))
	h := cosmos.New(env.Deps, cosmos.CosmosHub)

	_, err := h.Handle(ctx, req("cosmos", "transfer", map[string]interface{}{
		"to":     "cosmos1recipientxxxxxxxxxxxxxxxxxxxxxxxxxx",
		"amount": "1",
	}))
	perr, ok := err.(*types.Error)
	require.True(t, ok)
	require.Equal(t, types.ErrCodeMisconfigured, perr.Code)
}
