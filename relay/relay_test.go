package relay_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keepkey-community/wallet-gateway/relay"
	"github.com/keepkey-community/wallet-gateway/types"
)

type gatewayFunc func(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error)

func (f gatewayFunc) WalletRequest(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	return f(ctx, req)
}

func run(t *testing.T, gw relay.GatewayCaller) (chan *types.Envelope, chan *types.Envelope, context.CancelFunc) {
	in := make(chan *types.Envelope, 16)
	out := make(chan *types.Envelope, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go relay.New(gw, in, out).Run(ctx)
	return in, out, cancel
}

func recv(t *testing.T, out chan *types.Envelope) *types.Envelope {
	select {
	case env := <-out:
		return env
	case <-time.After(time.Second * 2):
		t.Fatal("no envelope from relay")
		return nil
	}
}

func TestRelayReadiness(t *testing.T) {
	in, out, _ := run(t, gatewayFunc(func(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
		return nil, nil
	}))

	in <- &types.Envelope{Source: types.SourcePage, Type: types.MsgReadinessCheck}
	resp := recv(t, out)
	require.Equal(t, types.MsgReadinessConfirmed, resp.Type)
	require.Equal(t, types.SourceRelay, resp.Source)
}

func TestRelayForwardsRequests(t *testing.T) {
	in, out, _ := run(t, gatewayFunc(func(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
		require.Equal(t, "request_accounts", req.Method)
		return json.RawMessage(`["0xabc"]`), nil
	}))

	in <- &types.Envelope{
		Source:      types.SourcePage,
		Type:        types.MsgWalletRequest,
		RequestID:   42,
		RequestInfo: &types.RequestInfo{Chain: "ethereum", Method: "request_accounts"},
	}
	resp := recv(t, out)
	require.Equal(t, types.MsgWalletResponse, resp.Type)
	require.Equal(t, int64(42), resp.RequestID)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `["0xabc"]`, string(resp.Result))
}

func TestRelayStructuresErrors(t *testing.T) {
	in, out, _ := run(t, gatewayFunc(func(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
		return nil, types.ErrUserRejected()
	}))

	in <- &types.Envelope{
		Source:      types.SourcePage,
		Type:        types.MsgWalletRequest,
		RequestID:   7,
		RequestInfo: &types.RequestInfo{Chain: "ethereum", Method: "eth_sendTransaction"},
	}
	resp := recv(t, out)
	require.NotNil(t, resp.Error)
	require.Equal(t, types.ErrCodeUserRejected, resp.Error.Code)
	require.Nil(t, resp.Result)
}

func TestRelayDropsSpoofedSource(t *testing.T) {
	in, out, _ := run(t, gatewayFunc(func(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
		t.Fatal("spoofed envelope reached the gateway")
		return nil, nil
	}))

	in <- &types.Envelope{Source: "evil-frame", Type: types.MsgWalletRequest, RequestInfo: &types.RequestInfo{}}
	in <- &types.Envelope{Source: types.SourcePage, Type: types.MsgReadinessCheck}

	// only the readiness reply comes out; the spoof vanished without reply
	resp := recv(t, out)
	require.Equal(t, types.MsgReadinessConfirmed, resp.Type)
	select {
	case env := <-out:
		t.Fatalf("unexpected extra envelope %s", env.Type)
	case <-time.After(time.Millisecond * 100):
	}
}

func TestRelaySlowRequestDoesNotBlockHop(t *testing.T) {
	release := make(chan struct{})
	in, out, _ := run(t, gatewayFunc(func(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
		if req.Method == "slow" {
			<-release
		}
		return json.RawMessage(`"ok"`), nil
	}))

	in <- &types.Envelope{Source: types.SourcePage, Type: types.MsgWalletRequest, RequestID: 1,
		RequestInfo: &types.RequestInfo{Chain: "ethereum", Method: "slow"}}
	in <- &types.Envelope{Source: types.SourcePage, Type: types.MsgWalletRequest, RequestID: 2,
		RequestInfo: &types.RequestInfo{Chain: "ethereum", Method: "fast"}}

	// the fast response overtakes the blocked one
	resp := recv(t, out)
	require.Equal(t, int64(2), resp.RequestID)

	close(release)
	resp = recv(t, out)
	require.Equal(t, int64(1), resp.RequestID)
}
