package bitcoin

import (
	"context"
	"encoding/json"

	"github.com/btcsuite/btcd/btcutil"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opencensus.io/tag"

	"github.com/keepkey-community/wallet-gateway/chains"
	"github.com/keepkey-community/wallet-gateway/metrics"
	"github.com/keepkey-community/wallet-gateway/types"
	"github.com/keepkey-community/wallet-gateway/walletstate"
)

var log = logging.Logger("chain_bitcoin")

// Network describes one UTXO chain served by this handler.
type Network struct {
	Tag       string
	NetworkID string
	AssetID   string
	Symbol    string
	// Dust is the minimum change output; anything below is folded into the
	// fee.
	Dust btcutil.Amount
}

var (
	Mainnet = Network{
		Tag:       "bitcoin",
		NetworkID: "bip122:000000000019d6689c085ae165831e93",
		AssetID:   "bip122:000000000019d6689c085ae165831e93/slip44:0",
		Symbol:    "BTC",
		Dust:      546,
	}
	Litecoin = Network{
		Tag:       "litecoin",
		NetworkID: "bip122:12a765e31ffd4059bada1e25190f6e9",
		AssetID:   "bip122:12a765e31ffd4059bada1e25190f6e9/slip44:2",
		Symbol:    "LTC",
		Dust:      5460,
	}
	Dogecoin = Network{
		Tag:       "dogecoin",
		NetworkID: "bip122:1a91e3dace36e2be3bf030a65679fe82",
		AssetID:   "bip122:1a91e3dace36e2be3bf030a65679fe82/slip44:3",
		Symbol:    "DOGE",
		Dust:      1_000_000,
	}
	BitcoinCash = Network{
		Tag:       "bitcoincash",
		NetworkID: "bip122:000000000000000000651ef99cb9fcbe",
		AssetID:   "bip122:000000000000000000651ef99cb9fcbe/slip44:145",
		Symbol:    "BCH",
		Dust:      546,
	}
)

// Backend provides unspent outputs, fee rates and change addresses for a
// UTXO network. The balance/UTXO aggregation service implements it.
type Backend interface {
	ListUnspent(ctx context.Context, networkID, pubkey string) ([]Unspent, error)
	// FeeRate returns the current rate in satoshis per vbyte.
	FeeRate(ctx context.Context, networkID string) (btcutil.Amount, error)
	// ChangeAddress derives a fresh change address on the wallet's
	// deterministic path.
	ChangeAddress(ctx context.Context, networkID string) (string, error)
}

// Handler serves the verb set for one UTXO network.
type Handler struct {
	deps    *chains.Deps
	backend Backend
	net     Network
}

func New(deps *chains.Deps, backend Backend, net Network) *Handler {
	return &Handler{deps: deps, backend: backend, net: net}
}

func (h *Handler) Handle(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	switch req.Method {
	case "request_accounts":
		accounts := h.deps.Wallet.AccountsFor(h.net.NetworkID)
		if len(accounts) > 1 {
			accounts = accounts[:1]
		}
		return chains.Marshal(accounts)
	case "request_balance":
		bal, ok := h.deps.Wallet.BalanceFor(h.net.AssetID)
		if !ok {
			return nil, types.NewError(types.ErrCodeUpstream, "no cached balance for %s", h.net.AssetID)
		}
		return chains.Marshal(bal)
	case "transfer":
		return h.transfer(ctx, req)
	default:
		return nil, types.ErrUnsupportedMethod(req.Chain, req.Method)
	}
}

type transferParams struct {
	To      string `json:"to"`
	Amount  string `json:"amount"`
	FeeRate int64  `json:"feeRate,omitempty"`
}

func (h *Handler) transfer(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	if len(req.Params) == 0 {
		return nil, types.ErrInvalidRequest("missing transfer parameters")
	}
	var params transferParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		return nil, types.ErrInvalidRequest("malformed transfer parameters: %v", err)
	}
	if params.To == "" {
		return nil, types.ErrInvalidRequest("missing recipient address")
	}
	amount, err := decimal.NewFromString(params.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, types.ErrInvalidRequest("invalid amount %q", params.Amount)
	}
	target := btcutil.Amount(amount.Shift(8).Truncate(0).IntPart())

	h.deps.Wallet.EnsureContext(walletstate.Context{NetworkID: h.net.NetworkID, AssetID: h.net.AssetID})

	sel, err := h.buildSelection(ctx, target, params)
	if err != nil {
		return nil, err
	}
	raw, err := chains.Marshal(sel)
	if err != nil {
		return nil, err
	}
	mctx, _ := tag.New(ctx, tag.Upsert(metrics.ChainKey, h.net.Tag))
	metrics.TxBuilt.Tick(mctx)

	rec, err := h.deps.RequireApproval(ctx, h.deps.NewRecord(req, h.net.NetworkID, raw))
	if err != nil {
		return nil, err
	}

	signed, err := h.deps.Signer.SignTransaction(ctx, h.net.NetworkID, firstPath(sel.Inputs), rec.UnsignedTx)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "sign transaction"))
	}
	txid, err := h.deps.Broadcaster.Broadcast(ctx, h.net.NetworkID, signed)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "broadcast transaction"))
	}
	if err := h.deps.Complete(ctx, rec, signed, txid); err != nil {
		return nil, types.AsError(err)
	}
	return chains.Marshal(txid)
}

func (h *Handler) buildSelection(ctx context.Context, target btcutil.Amount, params transferParams) (*Selection, error) {
	utxos, err := h.gatherUnspents(ctx)
	if err != nil {
		return nil, types.AsError(err)
	}
	rate := btcutil.Amount(params.FeeRate)
	if rate <= 0 {
		rate, err = h.backend.FeeRate(ctx, h.net.NetworkID)
		if err != nil {
			return nil, types.AsError(errors.Wrap(err, "fetch fee rate"))
		}
	}
	changeAddr, err := h.backend.ChangeAddress(ctx, h.net.NetworkID)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "derive change address"))
	}

	sel, err := Select(utxos, target, rate, h.net.Dust, params.To, changeAddr)
	if err == nil {
		return sel, nil
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		return nil, types.AsError(err)
	}
	log.Warnf("standard selection failed for %s %s, trying max send", target, h.net.Symbol)
	sel, maxErr := SelectMax(utxos, rate, params.To)
	if maxErr == nil && sel.Outputs[0].Amount >= target {
		return sel, nil
	}
	log.Errorf("unable to build %s transfer: %d available inputs cannot cover %s", h.net.Tag, len(utxos), target)
	return nil, types.NewError(types.ErrCodeUpstream, "insufficient funds").WithData(ErrInsufficientFunds.Error())
}

func (h *Handler) gatherUnspents(ctx context.Context) ([]Unspent, error) {
	var utxos []Unspent
	for _, key := range h.deps.Wallet.KeysFor(h.net.NetworkID) {
		found, err := h.backend.ListUnspent(ctx, h.net.NetworkID, key.PubKey)
		if err != nil {
			return nil, errors.Wrapf(err, "list unspent for %s", key.PubKey)
		}
		utxos = append(utxos, found...)
	}
	return utxos, nil
}

func firstPath(inputs []Unspent) string {
	for _, in := range inputs {
		if in.Path != "" {
			return in.Path
		}
	}
	return ""
}
