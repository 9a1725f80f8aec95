package relay

import (
	"context"
	"encoding/json"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/keepkey-community/wallet-gateway/types"
)

var log = logging.Logger("relay")

// GatewayCaller is the background side the relay forwards to. Satisfied by
// the in-process gateway API and by its jsonrpc client.
type GatewayCaller interface {
	WalletRequest(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error)
}

// Relay is the isolated middle hop between the page-side provider and the
// gateway. Pure pass-through: it tags envelopes, validates their source and
// forwards, nothing else.
type Relay struct {
	gateway GatewayCaller
	in      <-chan *types.Envelope
	out     chan<- *types.Envelope
}

func New(gateway GatewayCaller, in <-chan *types.Envelope, out chan<- *types.Envelope) *Relay {
	return &Relay{gateway: gateway, in: in, out: out}
}

// Run processes envelopes until the context ends. Requests are forwarded
// concurrently so one long-lived approval never blocks the hop.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case env, ok := <-r.in:
			if !ok {
				return
			}
			if env.Source != types.SourcePage {
				// cross-frame spoof, drop without reply
				log.Warnf("dropping envelope with unexpected source %q", env.Source)
				continue
			}
			switch env.Type {
			case types.MsgReadinessCheck:
				r.post(ctx, &types.Envelope{
					Source:    types.SourceRelay,
					Type:      types.MsgReadinessConfirmed,
					RequestID: env.RequestID,
					Timestamp: time.Now().UnixMilli(),
				})
			case types.MsgWalletRequest:
				go r.forward(ctx, env)
			default:
				log.Debugf("ignoring envelope type %q", env.Type)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) forward(ctx context.Context, env *types.Envelope) {
	result, err := r.gateway.WalletRequest(ctx, env.RequestInfo)
	resp := &types.Envelope{
		Source:    types.SourceRelay,
		Type:      types.MsgWalletResponse,
		RequestID: env.RequestID,
		Timestamp: time.Now().UnixMilli(),
	}
	if err != nil {
		resp.Error = types.AsError(err)
	} else {
		resp.Result = result
	}
	r.post(ctx, resp)
}

func (r *Relay) post(ctx context.Context, env *types.Envelope) {
	select {
	case r.out <- env:
	case <-ctx.Done():
	}
}
