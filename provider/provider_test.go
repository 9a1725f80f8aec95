package provider_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keepkey-community/wallet-gateway/provider"
	"github.com/keepkey-community/wallet-gateway/types"
)

type fakeRelay struct {
	posts chan *types.Envelope
	inbox chan *types.Envelope
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		posts: make(chan *types.Envelope, 256),
		inbox: make(chan *types.Envelope, 256),
	}
}

func (f *fakeRelay) Post(env *types.Envelope)         { f.posts <- env }
func (f *fakeRelay) Messages() <-chan *types.Envelope { return f.inbox }

// next reads posted envelopes until one of the wanted type shows up.
func (f *fakeRelay) next(t *testing.T, msgType string) *types.Envelope {
	t.Helper()
	deadline := time.After(time.Second * 5)
	for {
		select {
		case env := <-f.posts:
			if env.Type == msgType {
				return env
			}
		case <-deadline:
			t.Fatalf("no %s envelope posted", msgType)
			return nil
		}
	}
}

func (f *fakeRelay) confirmReady(t *testing.T) {
	t.Helper()
	f.next(t, types.MsgReadinessCheck)
	f.inbox <- &types.Envelope{Source: types.SourceRelay, Type: types.MsgReadinessConfirmed}
}

func testInfo() types.ProviderInfo {
	return types.ProviderInfo{
		UUID: "3c8b9f5e-0000-4000-8000-000000000001",
		Name: "Test Wallet",
		Icon: "data:image/svg+xml;base64,",
		RDNS: "com.example.testwallet",
	}
}

func newProvider(t *testing.T, relay *fakeRelay, cfg *provider.Config) (*provider.Provider, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if cfg == nil {
		cfg = provider.DefaultConfig()
	}
	p := provider.NewWithConfig(relay, testInfo(), provider.SiteInfo{URL: "https://dapp.example"},
		"1.0.0", zap.NewNop().Sugar(), cfg)
	p.Start(ctx)
	return p, ctx
}

func TestRequestCorrelation(t *testing.T) {
	relay := newFakeRelay()
	p, ctx := newProvider(t, relay, nil)
	relay.confirmReady(t)

	const n = 3
	results := make([]chan string, n)
	for i := 0; i < n; i++ {
		results[i] = make(chan string, 1)
		method := fmt.Sprintf("method_%d", i)
		go func(ch chan string) {
			raw, err := p.Request(ctx, method)
			require.NoError(t, err)
			var s string
			require.NoError(t, json.Unmarshal(raw, &s))
			ch <- s
		}(results[i])
	}

	// collect the posted requests, then answer newest first
	reqs := make([]*types.Envelope, n)
	byMethod := make(map[string]*types.Envelope)
	for i := 0; i < n; i++ {
		reqs[i] = relay.next(t, types.MsgWalletRequest)
		byMethod[reqs[i].RequestInfo.Method] = reqs[i]
	}
	for i := n - 1; i >= 0; i-- {
		env := byMethod[fmt.Sprintf("method_%d", i)]
		result, _ := json.Marshal(fmt.Sprintf("result_%d", i))
		relay.inbox <- &types.Envelope{
			Source:    types.SourceRelay,
			Type:      types.MsgWalletResponse,
			RequestID: env.RequestID,
			Result:    result,
		}
	}

	for i := 0; i < n; i++ {
		select {
		case got := <-results[i]:
			require.Equal(t, fmt.Sprintf("result_%d", i), got)
		case <-time.After(time.Second * 2):
			t.Fatalf("request %d never resolved", i)
		}
	}
}

func TestRequestIDsStrictlyIncrease(t *testing.T) {
	relay := newFakeRelay()
	p, _ := newProvider(t, relay, nil)
	relay.confirmReady(t)

	var last int64
	for i := 0; i < 5; i++ {
		p.SendAsync("eth_chainId", nil, func(json.RawMessage, *types.Error) {})
		env := relay.next(t, types.MsgWalletRequest)
		require.Greater(t, env.RequestID, last)
		last = env.RequestID
	}
}

func TestDuplicateResponseIgnored(t *testing.T) {
	relay := newFakeRelay()
	p, ctx := newProvider(t, relay, nil)
	relay.confirmReady(t)

	done := make(chan string, 1)
	go func() {
		raw, err := p.Request(ctx, "eth_chainId")
		require.NoError(t, err)
		var s string
		require.NoError(t, json.Unmarshal(raw, &s))
		done <- s
	}()

	env := relay.next(t, types.MsgWalletRequest)
	first, _ := json.Marshal("0x1")
	second, _ := json.Marshal("0x2")
	relay.inbox <- &types.Envelope{Type: types.MsgWalletResponse, RequestID: env.RequestID, Result: first}
	relay.inbox <- &types.Envelope{Type: types.MsgWalletResponse, RequestID: env.RequestID, Result: second}
	// a response for an id that never existed is equally a no-op
	relay.inbox <- &types.Envelope{Type: types.MsgWalletResponse, RequestID: 9999, Result: second}

	require.Equal(t, "0x1", <-done)
}

func TestPreReadyQueueFlushesInOrder(t *testing.T) {
	relay := newFakeRelay()
	p, _ := newProvider(t, relay, nil)

	for i := 0; i < 3; i++ {
		p.SendAsync(fmt.Sprintf("queued_%d", i), nil, func(json.RawMessage, *types.Error) {})
	}
	require.False(t, p.Ready())

	relay.confirmReady(t)
	for i := 0; i < 3; i++ {
		env := relay.next(t, types.MsgWalletRequest)
		require.Equal(t, fmt.Sprintf("queued_%d", i), env.RequestInfo.Method)
	}
	require.True(t, p.Ready())
}

func TestPreReadyQueueDropsOldest(t *testing.T) {
	relay := newFakeRelay()
	cfg := provider.DefaultConfig()
	cfg.QueueCap = 2
	p, _ := newProvider(t, relay, cfg)

	droppedErr := make(chan *types.Error, 1)
	p.SendAsync("oldest", nil, func(_ json.RawMessage, perr *types.Error) {
		droppedErr <- perr
	})
	p.SendAsync("middle", nil, func(json.RawMessage, *types.Error) {})
	p.SendAsync("newest", nil, func(json.RawMessage, *types.Error) {})

	select {
	case perr := <-droppedErr:
		require.NotNil(t, perr)
		require.Equal(t, types.ErrCodeUpstream, perr.Code)
	case <-time.After(time.Second * 2):
		t.Fatal("dropped request's caller never heard back")
	}

	relay.confirmReady(t)
	env := relay.next(t, types.MsgWalletRequest)
	require.Equal(t, "middle", env.RequestInfo.Method)
	env = relay.next(t, types.MsgWalletRequest)
	require.Equal(t, "newest", env.RequestInfo.Method)
}

func TestCallTimeout(t *testing.T) {
	relay := newFakeRelay()
	cfg := provider.DefaultConfig()
	cfg.CallTimeout = time.Millisecond * 50
	cfg.SweepInterval = time.Millisecond * 20
	p, ctx := newProvider(t, relay, cfg)
	relay.confirmReady(t)

	_, err := p.Request(ctx, "never_answered")
	require.Error(t, err)
	perr, ok := err.(*types.Error)
	require.True(t, ok)
	require.Equal(t, types.ErrCodeUpstream, perr.Code)
}

func TestHandshakeGivesUp(t *testing.T) {
	relay := newFakeRelay()
	cfg := provider.DefaultConfig()
	cfg.HandshakeBase = time.Millisecond * 5
	cfg.HandshakeAttempts = 2
	p, _ := newProvider(t, relay, cfg)

	require.Eventually(t, func() bool {
		return p.LastError() != nil
	}, time.Second*2, time.Millisecond*10)
	require.False(t, p.Ready())
}

func TestSynchronousValidation(t *testing.T) {
	relay := newFakeRelay()
	p, ctx := newProvider(t, relay, nil)

	t.Run("missing method", func(t *testing.T) {
		_, err := p.Request(ctx, "")
		perr, ok := err.(*types.Error)
		require.True(t, ok)
		require.Equal(t, types.ErrCodeInvalidRequest, perr.Code)
	})

	t.Run("unserializable parameter", func(t *testing.T) {
		_, err := p.Request(ctx, "eth_call", make(chan int))
		perr, ok := err.(*types.Error)
		require.True(t, ok)
		require.Equal(t, types.ErrCodeInvalidRequest, perr.Code)
	})
}

func TestDiscoveryAnnounce(t *testing.T) {
	relay := newFakeRelay()
	_, _ = newProvider(t, relay, nil)

	env := relay.next(t, types.MsgAnnounceProvider)
	var info types.ProviderInfo
	require.NoError(t, json.Unmarshal(env.Result, &info))
	require.Equal(t, testInfo(), info)

	// pages asking later get a fresh announcement
	relay.inbox <- &types.Envelope{Type: types.MsgRequestProvider}
	env = relay.next(t, types.MsgAnnounceProvider)
	require.NoError(t, json.Unmarshal(env.Result, &info))
	require.Equal(t, "com.example.testwallet", info.RDNS)
}

func TestChainScopedViews(t *testing.T) {
	relay := newFakeRelay()
	p, _ := newProvider(t, relay, nil)
	relay.confirmReady(t)

	btc := p.ForChain("bitcoin", "bip122:000000000019d6689c085ae165831e93")
	btc.SendAsync("request_accounts", nil, func(json.RawMessage, *types.Error) {})
	env := relay.next(t, types.MsgWalletRequest)
	require.Equal(t, "bitcoin", env.RequestInfo.Chain)
	require.Equal(t, "bip122:000000000019d6689c085ae165831e93", env.RequestInfo.NetworkID)

	// views share one id sequence
	p.SendAsync("eth_chainId", nil, func(json.RawMessage, *types.Error) {})
	next := relay.next(t, types.MsgWalletRequest)
	require.Greater(t, next.RequestID, env.RequestID)

	ns := p.Namespaces()
	for _, chain := range []string{"ethereum", "bitcoin", "cosmos", "ripple", "thorchain"} {
		require.Contains(t, ns, chain)
	}
}

func TestEmitter(t *testing.T) {
	relay := newFakeRelay()
	p, _ := newProvider(t, relay, nil)

	var onCount, onceCount int
	onFn := func(args ...interface{}) { onCount++ }
	p.On("accountsChanged", onFn)
	p.Once("accountsChanged", func(args ...interface{}) { onceCount++ })

	p.Emit("accountsChanged", []string{"0xabc"})
	p.Emit("accountsChanged", []string{"0xdef"})
	require.Equal(t, 2, onCount)
	require.Equal(t, 1, onceCount)

	p.Off("accountsChanged", onFn)
	p.Emit("accountsChanged")
	require.Equal(t, 2, onCount)
}

func TestConnectEventOnReady(t *testing.T) {
	relay := newFakeRelay()
	p, _ := newProvider(t, relay, nil)

	connected := make(chan struct{}, 1)
	p.On(provider.EventConnect, func(args ...interface{}) {
		connected <- struct{}{}
	})
	relay.confirmReady(t)

	select {
	case <-connected:
	case <-time.After(time.Second * 2):
		t.Fatal("connect event never fired")
	}
}
