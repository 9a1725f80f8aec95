package cosmos

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/keepkey-community/wallet-gateway/chains"
	"github.com/keepkey-community/wallet-gateway/types"
	"github.com/keepkey-community/wallet-gateway/walletstate"
)

// Network describes one Cosmos-SDK chain served by this handler.
type Network struct {
	Tag       string
	NetworkID string
	AssetID   string
	Denom     string
	Symbol    string
	// Exponent converts display units into the base denom.
	Exponent int32
}

var (
	CosmosHub = Network{
		Tag:       "cosmos",
		NetworkID: "cosmos:cosmoshub-4",
		AssetID:   "cosmos:cosmoshub-4/slip44:118",
		Denom:     "uatom",
		Symbol:    "ATOM",
		Exponent:  6,
	}
	Osmosis = Network{
		Tag:       "osmosis",
		NetworkID: "cosmos:osmosis-1",
		AssetID:   "cosmos:osmosis-1/slip44:118",
		Denom:     "uosmo",
		Symbol:    "OSMO",
		Exponent:  6,
	}
	Thorchain = Network{
		Tag:       "thorchain",
		NetworkID: "cosmos:thorchain-mainnet-v1",
		AssetID:   "cosmos:thorchain-mainnet-v1/slip44:931",
		Denom:     "rune",
		Symbol:    "RUNE",
		Exponent:  8,
	}
)

// Handler serves the account-model verb set for one Cosmos-family chain.
// No input selection is needed; the payload is a structured send.
type Handler struct {
	deps *chains.Deps
	net  Network
}

func New(deps *chains.Deps, net Network) *Handler {
	return &Handler{deps: deps, net: net}
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

// SendPayload is the unsigned send handed to the signing capability.
type SendPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
	Memo   string `json:"memo,omitempty"`
	Path   string `json:"derivationPath"`
}

func (h *Handler) transfer(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	if len(req.Params) == 0 {
		return nil, types.ErrInvalidRequest("missing transfer parameters")
	}
	var params struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
		Memo   string `json:"memo,omitempty"`
	}
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
	base := amount.Shift(h.net.Exponent).Truncate(0)

	h.deps.Wallet.EnsureContext(walletstate.Context{NetworkID: h.net.NetworkID, AssetID: h.net.AssetID})
	keys := h.deps.Wallet.KeysFor(h.net.NetworkID)
	if len(keys) == 0 {
		return nil, types.NewError(types.ErrCodeMisconfigured, "no account derived for %s", h.net.NetworkID)
	}
	key := keys[0]

	payload, err := chains.Marshal(&SendPayload{
		From:   key.Address,
		To:     params.To,
		Amount: base.String(),
		Denom:  h.net.Denom,
		Memo:   params.Memo,
		Path:   key.Path,
	})
	if err != nil {
		return nil, err
	}

	rec, err := h.deps.RequireApproval(ctx, h.deps.NewRecord(req, h.net.NetworkID, payload))
	if err != nil {
		return nil, err
	}

	signed, err := h.deps.Signer.SignTransaction(ctx, h.net.NetworkID, key.Path, rec.UnsignedTx)
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
