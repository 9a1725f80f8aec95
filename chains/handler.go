package chains

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opencensus.io/tag"

	"github.com/keepkey-community/wallet-gateway/approvals"
	"github.com/keepkey-community/wallet-gateway/metrics"
	"github.com/keepkey-community/wallet-gateway/store"
	"github.com/keepkey-community/wallet-gateway/types"
	"github.com/keepkey-community/wallet-gateway/walletstate"
)

// Handler implements the verb set for one chain family.
type Handler interface {
	// Handle dispatches on req.Method and returns a JSON result or a
	// structured provider error.
	Handle(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error)
}

// Deps are the shared collaborators every chain family handler holds.
type Deps struct {
	Store       store.Store
	Gate        *approvals.Gate
	Wallet      *walletstate.State
	Signer      walletstate.Signer
	Broadcaster walletstate.Broadcaster
}

// NewRecord builds a request record from the relayed request metadata.
func (d *Deps) NewRecord(req *types.RequestInfo, networkID string, unsigned json.RawMessage) *store.Event {
	params, _ := json.Marshal(req.Params)
	return &store.Event{
		ID:            uuid.NewString(),
		NetworkID:     networkID,
		Chain:         req.Chain,
		Type:          req.Method,
		Request:       params,
		UnsignedTx:    unsigned,
		Status:        store.StatusRequest,
		Timestamp:     time.Now().UTC(),
		SiteURL:       req.SiteURL,
		Referrer:      req.Referrer,
		UserAgent:     req.UserAgent,
		Platform:      req.Platform,
		Language:      req.Language,
		ScriptSource:  req.ScriptSource,
		ScriptVersion: req.Version,
	}
}

// RequireApproval persists the record, blocks on the gate and re-reads the
// possibly updated record once approved. A denial surfaces as the fixed
// user-rejected error.
func (d *Deps) RequireApproval(ctx context.Context, rec *store.Event) (*store.Event, error) {
	ok, err := d.Gate.Require(ctx, rec)
	if err != nil {
		return nil, types.AsError(err)
	}
	if !ok {
		return nil, types.ErrUserRejected()
	}
	return d.Store.Get(ctx, store.QueueAwaitingApproval, rec.ID)
}

// Complete attaches the signed payload and transaction id and moves the
// record to its terminal queue. Subscribers on the completed queue observe
// the move.
func (d *Deps) Complete(ctx context.Context, rec *store.Event, signed json.RawMessage, txid string) error {
	rec.SignedTx = signed
	rec.TxID = txid
	if err := d.Store.Update(ctx, rec); err != nil {
		return err
	}
	if _, err := d.Store.Move(ctx, store.QueueAwaitingApproval, store.QueueCompleted, rec.ID, store.StatusCompleted); err != nil {
		return err
	}
	mctx, _ := tag.New(ctx, tag.Upsert(metrics.ChainKey, rec.Chain))
	metrics.TxBroadcast.Tick(mctx)
	return nil
}

// Marshal wraps a handler result as raw JSON; marshal failures become
// upstream errors rather than escaping raw.
func Marshal(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, types.AsError(err)
	}
	return raw, nil
}
