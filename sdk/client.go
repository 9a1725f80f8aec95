package sdk

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/filecoin-project/go-jsonrpc"

	"github.com/keepkey-community/wallet-gateway/chains/bitcoin"
	"github.com/keepkey-community/wallet-gateway/walletstate"
)

// SignerStruct is the function table of the device daemon's RPC surface.
// The daemon owns key material; the gateway only ever sees public keys,
// addresses and signed payloads.
type SignerStruct struct {
	Keys     func(ctx context.Context) ([]*walletstate.KeyInfo, error)
	Balances func(ctx context.Context) ([]*walletstate.Balance, error)

	SignTransaction func(ctx context.Context, networkID, path string, unsigned json.RawMessage) (json.RawMessage, error)
	SignMessage     func(ctx context.Context, networkID, path string, message []byte) (string, error)
	SignTypedData   func(ctx context.Context, networkID, path string, typedData json.RawMessage) (string, error)

	Broadcast func(ctx context.Context, networkID string, signed json.RawMessage) (string, error)

	ListUnspent   func(ctx context.Context, networkID, pubkey string) ([]bitcoin.Unspent, error)
	FeeRate       func(ctx context.Context, networkID string) (btcutil.Amount, error)
	ChangeAddress func(ctx context.Context, networkID string) (string, error)
}

// Client is the gateway-side view of the device daemon. It satisfies the
// signer, broadcaster and UTXO backend capabilities.
type Client struct {
	Internal SignerStruct
}

var (
	_ walletstate.Signer      = (*Client)(nil)
	_ walletstate.Broadcaster = (*Client)(nil)
	_ bitcoin.Backend         = (*Client)(nil)
)

// NewSignerClient dials the device daemon's JSON-RPC endpoint.
func NewSignerClient(ctx context.Context, url, token string) (*Client, jsonrpc.ClientCloser, error) {
	headers := http.Header{}
	if token != "" {
		headers.Add("Authorization", "Bearer "+token)
	}
	var client Client
	closer, err := jsonrpc.NewMergeClient(ctx, url, "SDK", []interface{}{&client.Internal}, headers)
	if err != nil {
		return nil, nil, err
	}
	return &client, closer, nil
}

func (c *Client) Keys(ctx context.Context) ([]*walletstate.KeyInfo, error) {
	return c.Internal.Keys(ctx)
}

func (c *Client) Balances(ctx context.Context) ([]*walletstate.Balance, error) {
	return c.Internal.Balances(ctx)
}

func (c *Client) SignTransaction(ctx context.Context, networkID, path string, unsigned json.RawMessage) (json.RawMessage, error) {
	return c.Internal.SignTransaction(ctx, networkID, path, unsigned)
}

func (c *Client) SignMessage(ctx context.Context, networkID, path string, message []byte) (string, error) {
	return c.Internal.SignMessage(ctx, networkID, path, message)
}

func (c *Client) SignTypedData(ctx context.Context, networkID, path string, typedData json.RawMessage) (string, error) {
	return c.Internal.SignTypedData(ctx, networkID, path, typedData)
}

func (c *Client) Broadcast(ctx context.Context, networkID string, signed json.RawMessage) (string, error) {
	return c.Internal.Broadcast(ctx, networkID, signed)
}

func (c *Client) ListUnspent(ctx context.Context, networkID, pubkey string) ([]bitcoin.Unspent, error) {
	return c.Internal.ListUnspent(ctx, networkID, pubkey)
}

func (c *Client) FeeRate(ctx context.Context, networkID string) (btcutil.Amount, error) {
	return c.Internal.FeeRate(ctx, networkID)
}

func (c *Client) ChangeAddress(ctx context.Context, networkID string) (string, error) {
	return c.Internal.ChangeAddress(ctx, networkID)
}
