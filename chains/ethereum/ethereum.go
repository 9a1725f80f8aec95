package ethereum

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/keepkey-community/wallet-gateway/chains"
	"github.com/keepkey-community/wallet-gateway/types"
	"github.com/keepkey-community/wallet-gateway/walletstate"
)

var log = logging.Logger("chain_ethereum")

// DerivationPath is the fixed signing path for the EVM account.
const DerivationPath = "m/44'/60'/0'/0/0"

// Backend is the subset of an EVM node the handler needs. *ethclient.Client
// satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// Handler serves the EVM verb set.
type Handler struct {
	deps      *chains.Deps
	backend   Backend
	networkID string
	assetID   string
	chainID   uint64
}

func New(deps *chains.Deps, backend Backend, networkID string) (*Handler, error) {
	chainID, err := chainIDFrom(networkID)
	if err != nil {
		return nil, err
	}
	return &Handler{
		deps:      deps,
		backend:   backend,
		networkID: networkID,
		assetID:   networkID + "/slip44:60",
		chainID:   chainID,
	}, nil
}

// NetworkID formats a chain id as an eip155 network identifier.
func NetworkID(chainID int64) string {
	return "eip155:" + strconv.FormatInt(chainID, 10)
}

func chainIDFrom(networkID string) (uint64, error) {
	parts := strings.SplitN(networkID, ":", 2)
	if len(parts) != 2 || parts[0] != "eip155" {
		return 0, errors.Errorf("not an eip155 network id: %s", networkID)
	}
	return strconv.ParseUint(parts[1], 10, 64)
}

func (h *Handler) Handle(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	switch req.Method {
	case "request_accounts", "eth_accounts", "eth_requestAccounts":
		return chains.Marshal(h.deps.Wallet.AccountsFor(h.networkID))
	case "eth_chainId":
		return chains.Marshal(hexutil.EncodeUint64(h.chainID))
	case "request_balance":
		bal, ok := h.deps.Wallet.BalanceFor(h.assetID)
		if !ok {
			return nil, types.NewError(types.ErrCodeUpstream, "no cached balance for %s", h.assetID)
		}
		return chains.Marshal(bal)
	case "personal_sign":
		return h.signMessage(ctx, req, 0, 1)
	case "eth_sign":
		return h.signMessage(ctx, req, 1, 0)
	case "eth_signTypedData", "eth_signTypedData_v3", "eth_signTypedData_v4":
		return h.signTypedData(ctx, req)
	case "transfer":
		return h.transfer(ctx, req)
	case "eth_sendTransaction":
		return h.sendTransaction(ctx, req, true)
	case "eth_signTransaction":
		return h.sendTransaction(ctx, req, false)
	default:
		return nil, types.ErrUnsupportedMethod(req.Chain, req.Method)
	}
}

func (h *Handler) activeKey() (walletstate.KeyInfo, error) {
	keys := h.deps.Wallet.KeysFor(h.networkID)
	if len(keys) == 0 {
		return walletstate.KeyInfo{}, types.NewError(types.ErrCodeMisconfigured, "no account derived for %s", h.networkID)
	}
	return keys[0], nil
}

// txArgs is the transaction object dapps submit.
type txArgs struct {
	From                 string          `json:"from"`
	To                   string          `json:"to"`
	Value                *hexutil.Big    `json:"value"`
	Data                 hexutil.Bytes   `json:"data"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
}

// UnsignedTx is the canonical payload handed to the signing capability.
type UnsignedTx struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	ChainID              hexutil.Uint64  `json:"chainId"`
	DerivationPath       string          `json:"derivationPath"`
}

func (h *Handler) sendTransaction(ctx context.Context, req *types.RequestInfo, broadcast bool) (json.RawMessage, error) {
	if len(req.Params) == 0 {
		return nil, types.ErrInvalidRequest("missing transaction object")
	}
	var args txArgs
	if err := json.Unmarshal(req.Params[0], &args); err != nil {
		return nil, types.ErrInvalidRequest("malformed transaction object: %v", err)
	}
	return h.signAndSend(ctx, req, &args, broadcast)
}

// transfer is the simplified send verb: {"to": ..., "amount": "1.5"} with
// the amount in whole coins.
func (h *Handler) transfer(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	if len(req.Params) == 0 {
		return nil, types.ErrInvalidRequest("missing transfer parameters")
	}
	var params struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		return nil, types.ErrInvalidRequest("malformed transfer parameters: %v", err)
	}
	amount, err := decimal.NewFromString(params.Amount)
	if err != nil || amount.IsNegative() {
		return nil, types.ErrInvalidRequest("invalid amount %q", params.Amount)
	}
	wei := amount.Shift(18).Truncate(0).BigInt()
	return h.signAndSend(ctx, req, &txArgs{To: params.To, Value: (*hexutil.Big)(wei)}, true)
}

func (h *Handler) signAndSend(ctx context.Context, req *types.RequestInfo, args *txArgs, broadcast bool) (json.RawMessage, error) {
	h.deps.Wallet.EnsureContext(walletstate.Context{NetworkID: h.networkID, AssetID: h.assetID})

	key, err := h.activeKey()
	if err != nil {
		return nil, err
	}
	unsigned, err := h.buildTx(ctx, key, args)
	if err != nil {
		return nil, types.AsError(err)
	}
	raw, err := chains.Marshal(unsigned)
	if err != nil {
		return nil, err
	}

	rec, err := h.deps.RequireApproval(ctx, h.deps.NewRecord(req, h.networkID, raw))
	if err != nil {
		return nil, err
	}

	signed, err := h.deps.Signer.SignTransaction(ctx, h.networkID, key.Path, rec.UnsignedTx)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "sign transaction"))
	}
	if !broadcast {
		if err := h.deps.Complete(ctx, rec, signed, ""); err != nil {
			return nil, types.AsError(err)
		}
		return signed, nil
	}
	txid, err := h.deps.Broadcaster.Broadcast(ctx, h.networkID, signed)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "broadcast transaction"))
	}
	if err := h.deps.Complete(ctx, rec, signed, txid); err != nil {
		return nil, types.AsError(err)
	}
	return chains.Marshal(txid)
}

func (h *Handler) buildTx(ctx context.Context, key walletstate.KeyInfo, args *txArgs) (*UnsignedTx, error) {
	from := common.HexToAddress(key.Address)
	if args.From != "" {
		from = common.HexToAddress(args.From)
	}
	var to *common.Address
	if args.To != "" {
		addr := common.HexToAddress(args.To)
		to = &addr
	}

	nonce, err := h.resolveNonce(ctx, from, args)
	if err != nil {
		return nil, errors.Wrap(err, "resolve nonce")
	}
	gas, err := h.resolveGas(ctx, from, to, args)
	if err != nil {
		return nil, errors.Wrap(err, "resolve gas")
	}

	unsigned := &UnsignedTx{
		From:           from,
		To:             to,
		Value:          args.Value,
		Data:           args.Data,
		Nonce:          hexutil.Uint64(nonce),
		Gas:            hexutil.Uint64(gas),
		ChainID:        hexutil.Uint64(h.chainID),
		DerivationPath: key.Path,
	}
	if err := h.resolveFees(ctx, unsigned, args); err != nil {
		return nil, errors.Wrap(err, "resolve fees")
	}
	return unsigned, nil
}

func (h *Handler) resolveNonce(ctx context.Context, from common.Address, args *txArgs) (uint64, error) {
	if args.Nonce != nil {
		return uint64(*args.Nonce), nil
	}
	return h.backend.PendingNonceAt(ctx, from)
}

func (h *Handler) resolveGas(ctx context.Context, from common.Address, to *common.Address, args *txArgs) (uint64, error) {
	if args.Gas != nil {
		return ClampGas(uint64(*args.Gas)), nil
	}
	msg := ethereum.CallMsg{From: from, To: to, Data: args.Data}
	if args.Value != nil {
		msg.Value = args.Value.ToInt()
	}
	raw, err := h.backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, err
	}
	gas := ClampGas(raw)
	if gas != raw {
		log.Debugf("gas estimate %d clamped to %d", raw, gas)
	}
	return gas, nil
}

func (h *Handler) resolveFees(ctx context.Context, unsigned *UnsignedTx, args *txArgs) error {
	if args.MaxFeePerGas != nil && args.MaxPriorityFeePerGas != nil {
		unsigned.MaxFeePerGas = args.MaxFeePerGas
		unsigned.MaxPriorityFeePerGas = args.MaxPriorityFeePerGas
		return nil
	}
	if args.GasPrice != nil {
		unsigned.GasPrice = args.GasPrice
		return nil
	}
	tip, err := h.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return err
	}
	price, err := h.backend.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}
	maxFee := new(big.Int).Add(new(big.Int).Mul(price, big.NewInt(2)), tip)
	unsigned.MaxFeePerGas = (*hexutil.Big)(maxFee)
	unsigned.MaxPriorityFeePerGas = (*hexutil.Big)(tip)
	return nil
}

// signMessage serves personal_sign and eth_sign, which carry the same two
// parameters in opposite order.
func (h *Handler) signMessage(ctx context.Context, req *types.RequestInfo, msgIdx, addrIdx int) (json.RawMessage, error) {
	if len(req.Params) <= msgIdx {
		return nil, types.ErrInvalidRequest("missing message parameter")
	}
	var rawMsg string
	if err := json.Unmarshal(req.Params[msgIdx], &rawMsg); err != nil {
		return nil, types.ErrInvalidRequest("malformed message parameter: %v", err)
	}
	message := []byte(rawMsg)
	if decoded, err := hexutil.Decode(rawMsg); err == nil {
		message = decoded
	}

	h.deps.Wallet.EnsureContext(walletstate.Context{NetworkID: h.networkID, AssetID: h.assetID})
	key, err := h.activeKey()
	if err != nil {
		return nil, err
	}
	signer := key.Address
	if len(req.Params) > addrIdx {
		var addr string
		if err := json.Unmarshal(req.Params[addrIdx], &addr); err == nil && addr != "" {
			signer = addr
		}
	}

	payload, err := chains.Marshal(map[string]string{
		"address": signer,
		"message": hexutil.Encode(message),
	})
	if err != nil {
		return nil, err
	}
	rec, err := h.deps.RequireApproval(ctx, h.deps.NewRecord(req, h.networkID, payload))
	if err != nil {
		return nil, err
	}

	sig, err := h.deps.Signer.SignMessage(ctx, h.networkID, key.Path, message)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "sign message"))
	}
	signed, err := chains.Marshal(map[string]string{"signature": sig})
	if err != nil {
		return nil, err
	}
	if err := h.deps.Complete(ctx, rec, signed, ""); err != nil {
		return nil, types.AsError(err)
	}
	return chains.Marshal(sig)
}

func (h *Handler) signTypedData(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	if len(req.Params) < 2 {
		return nil, types.ErrInvalidRequest("eth_signTypedData requires address and typed data")
	}
	typedData := req.Params[1]
	// v3/v4 send the typed data JSON-encoded as a string
	var asString string
	if err := json.Unmarshal(req.Params[1], &asString); err == nil {
		typedData = json.RawMessage(asString)
	}

	h.deps.Wallet.EnsureContext(walletstate.Context{NetworkID: h.networkID, AssetID: h.assetID})
	key, err := h.activeKey()
	if err != nil {
		return nil, err
	}

	rec, err := h.deps.RequireApproval(ctx, h.deps.NewRecord(req, h.networkID, typedData))
	if err != nil {
		return nil, err
	}

	sig, err := h.deps.Signer.SignTypedData(ctx, h.networkID, key.Path, rec.UnsignedTx)
	if err != nil {
		return nil, types.AsError(errors.Wrap(err, "sign typed data"))
	}
	signed, err := chains.Marshal(map[string]string{"signature": sig})
	if err != nil {
		return nil, err
	}
	if err := h.deps.Complete(ctx, rec, signed, ""); err != nil {
		return nil, types.AsError(err)
	}
	return chains.Marshal(sig)
}
