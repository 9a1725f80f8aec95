package api

import (
	"context"
	"encoding/json"

	"github.com/keepkey-community/wallet-gateway/store"
	"github.com/keepkey-community/wallet-gateway/types"
)

// IGateway is the dispatch service's RPC surface.
type IGateway interface {
	// WalletRequest routes one page request to its chain handler.
	WalletRequest(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error)

	// Resolve settles a request waiting for user approval.
	Resolve(ctx context.Context, id string, approved bool) error

	ListPending(ctx context.Context) ([]*store.Event, error)
	ListAwaitingApproval(ctx context.Context) ([]*store.Event, error)
	ListCompleted(ctx context.Context) ([]*store.Event, error)

	// DiscardPending drops a pending record that will never be approved,
	// rejecting any request still blocked on it.
	DiscardPending(ctx context.Context, id string) error

	Chains(ctx context.Context) ([]string, error)
	Version(ctx context.Context) (string, error)
}

// GatewayStruct is the client-side function-table form of IGateway.
type GatewayStruct struct {
	WalletRequest func(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) `perm:"write"`

	Resolve func(ctx context.Context, id string, approved bool) error `perm:"admin"`

	ListPending          func(ctx context.Context) ([]*store.Event, error) `perm:"read"`
	ListAwaitingApproval func(ctx context.Context) ([]*store.Event, error) `perm:"read"`
	ListCompleted        func(ctx context.Context) ([]*store.Event, error) `perm:"read"`

	DiscardPending func(ctx context.Context, id string) error `perm:"admin"`

	Chains  func(ctx context.Context) ([]string, error) `perm:"read"`
	Version func(ctx context.Context) (string, error)   `perm:"read"`
}
