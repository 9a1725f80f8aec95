package ripple

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/keepkey-community/wallet-gateway/chains"
	"github.com/keepkey-community/wallet-gateway/types"
	"github.com/keepkey-community/wallet-gateway/walletstate"
)

const (
	NetworkID = "xrpl:0"
	AssetID   = "xrpl:0/slip44:144"
	// XRP amounts are denominated in drops on the wire.
	dropExponent = 6
)

// Handler serves the XRP Ledger verb set.
type Handler struct {
	deps *chains.Deps
}

func New(deps *chains.Deps) *Handler {
	return &Handler{deps: deps}
}

func (h *Handler) Handle(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	switch req.Method {
	case "request_accounts":
		accounts := h.deps.Wallet.AccountsFor(NetworkID)
		if len(accounts) > 1 {
			accounts = accounts[:1]
		}
		return chains.Marshal(accounts)
	case "request_balance":
		bal, ok := h.deps.Wallet.BalanceFor(AssetID)
		if !ok {
			return nil, types.NewError(types.ErrCodeUpstream, "no cached balance for %s", AssetID)
		}
		return chains.Marshal(bal)
	case "transfer":
		return h.transfer(ctx, req)
	default:
		return nil, types.ErrUnsupportedMethod(req.Chain, req.Method)
	}
}

// Payment is the unsigned payment handed to the signing capability.
type Payment struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Drops          string `json:"drops"`
	DestinationTag uint32 `json:"destinationTag,omitempty"`
	Path           string `json:"derivationPath"`
}

func (h *Handler) transfer(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	if len(req.Params) == 0 {
		return nil, types.ErrInvalidRequest("missing transfer parameters")
	}
	var params struct {
		To             string `json:"to"`
		Amount         string `json:"amount"`
		DestinationTag uint32 `json:"destinationTag,omitempty"`
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
	drops := amount.Shift(dropExponent).Truncate(0)

	h.deps.Wallet.EnsureContext(walletstate.Context{NetworkID: NetworkID, AssetID: AssetID})
	keys := h.deps.Wallet.KeysFor(NetworkID)
	if len(keys) == 0 {
		return nil, types.NewError(types.ErrCodeMisconfigured, "no account derived for %s", NetworkID)
	}
	key := keys[0]

	payload, err := chains.Marshal(&Payment{
		From:           key.Address,
		To:             params.To,
		Drops:          drops.String(),
		DestinationTag: params.DestinationTag,
		Path:           key.Path,
	})
	if err != nil {
		return nil, err
	}

	rec, err := h.deps.RequireApproval(ctx, h.deps.NewRecord(req, NetworkID, payload))
	if err != nil {
		return nil, err
	}

	signed, err := h.deps.Signer.SignTransaction(ctx, NetworkID, key.Path, rec.UnsignedTx)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "sign transaction"))
	}
	txid, err := h.deps.Broadcaster.Broadcast(ctx, NetworkID, signed)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "broadcast transaction"))
	}
	if err := h.deps.Complete(ctx, rec, signed, txid); err != nil {
		return nil, types.AsError(err)
	}
	return chains.Marshal(txid)
}
