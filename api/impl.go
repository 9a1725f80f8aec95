package api

import (
	"context"
	"encoding/json"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/keepkey-community/wallet-gateway/approvals"
	"github.com/keepkey-community/wallet-gateway/gateway"
	"github.com/keepkey-community/wallet-gateway/store"
	"github.com/keepkey-community/wallet-gateway/types"
	"github.com/keepkey-community/wallet-gateway/version"
)

var log = logging.Logger("api")

var _ IGateway = (*GatewayAPI)(nil)

type GatewayAPI struct {
	router *gateway.Router
	gate   *approvals.Gate
	st     store.Store
	cfg    *types.RequestConfig
}

func NewGatewayAPI(router *gateway.Router, gate *approvals.Gate, st store.Store, cfg *types.RequestConfig) *GatewayAPI {
	return &GatewayAPI{router: router, gate: gate, st: st, cfg: cfg}
}

func (g *GatewayAPI) WalletRequest(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	return g.router.Dispatch(ctx, req)
}

func (g *GatewayAPI) Resolve(ctx context.Context, id string, approved bool) error {
	return g.gate.Resolve(ctx, id, approved)
}

func (g *GatewayAPI) ListPending(ctx context.Context) ([]*store.Event, error) {
	return g.st.List(ctx, store.QueuePending)
}

func (g *GatewayAPI) ListAwaitingApproval(ctx context.Context) ([]*store.Event, error) {
	return g.st.List(ctx, store.QueueAwaitingApproval)
}

// ListCompleted drops completed records past the retention window before
// returning the remainder, so history never grows unbounded.
func (g *GatewayAPI) ListCompleted(ctx context.Context) ([]*store.Event, error) {
	if g.cfg.Retention > 0 {
		purged, err := g.st.PurgeOlderThan(ctx, store.QueueCompleted, g.cfg.Retention)
		if err != nil {
			log.Warnf("purge completed records: %v", err)
		} else if purged > 0 {
			log.Infof("purged %d completed records older than %s", purged, g.cfg.Retention)
		}
	}
	return g.st.List(ctx, store.QueueCompleted)
}

// DiscardPending drops a record the user will never act on. A request still
// blocked on the approval gate is settled as rejected first, so its caller
// unblocks with a rejection instead of waiting on a record no list shows.
func (g *GatewayAPI) DiscardPending(ctx context.Context, id string) error {
	err := g.gate.Resolve(ctx, id, false)
	if err == nil {
		// the rejected Require call removes the record itself
		return nil
	}
	if !errors.Is(err, approvals.ErrNotFound) {
		return err
	}
	if _, err := g.st.Get(ctx, store.QueuePending, id); err != nil {
		return err
	}
	return g.st.Remove(ctx, store.QueuePending, id)
}

func (g *GatewayAPI) Chains(ctx context.Context) ([]string, error) {
	return g.router.Chains(), nil
}

func (g *GatewayAPI) Version(ctx context.Context) (string, error) {
	return version.UserVersion, nil
}
