package testhelper

import (
	"context"

	"github.com/keepkey-community/wallet-gateway/approvals"
	"github.com/keepkey-community/wallet-gateway/chains"
	"github.com/keepkey-community/wallet-gateway/types"
	"github.com/keepkey-community/wallet-gateway/walletstate"
)

// Env bundles the collaborators a chain handler test needs.
type Env struct {
	Store    *MemStore
	Wallet   *MemWallet
	Notifier *RecordingNotifier
	Gate     *approvals.Gate
	Deps     *chains.Deps
	State    *walletstate.State
}

func NewEnv(ctx context.Context, state *walletstate.State) *Env {
	st := NewMemStore()
	wallet := NewMemWallet()
	notifier := NewRecordingNotifier()
	gate := approvals.NewGate(ctx, st, notifier, types.DefaultRequestConfig())
	return &Env{
		Store:    st,
		Wallet:   wallet,
		Notifier: notifier,
		Gate:     gate,
		State:    state,
		Deps: &chains.Deps{
			Store:       st,
			Gate:        gate,
			Wallet:      state,
			Signer:      wallet,
			Broadcaster: wallet,
		},
	}
}

// AutoSettle resolves every surfaced approval with the given decision until
// the context ends.
func (e *Env) AutoSettle(ctx context.Context, approved bool) {
	go func() {
		for {
			select {
			case rec := <-e.Notifier.Ch:
				_ = e.Gate.Resolve(ctx, rec.ID, approved)
			case <-ctx.Done():
				return
			}
		}
	}()
}
