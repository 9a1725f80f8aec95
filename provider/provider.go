package provider

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/keepkey-community/wallet-gateway/types"
)

// ScriptSource identifies this bridge in request metadata.
const ScriptSource = "wallet-gateway-provider"

// Transport is the message channel between the provider and the relay.
type Transport interface {
	Post(env *types.Envelope)
	Messages() <-chan *types.Envelope
}

// ChannelTransport is the plain channel-pair transport used when provider
// and relay share a process.
type ChannelTransport struct {
	Out chan *types.Envelope
	In  chan *types.Envelope
}

func NewChannelTransport(buf int) (*ChannelTransport, *ChannelTransport) {
	a := make(chan *types.Envelope, buf)
	b := make(chan *types.Envelope, buf)
	return &ChannelTransport{Out: a, In: b}, &ChannelTransport{Out: b, In: a}
}

func (t *ChannelTransport) Post(env *types.Envelope)        { t.Out <- env }
func (t *ChannelTransport) Messages() <-chan *types.Envelope { return t.In }

// SiteInfo is the page metadata stamped onto every outbound request.
type SiteInfo struct {
	URL       string
	Referrer  string
	Href      string
	UserAgent string
	Platform  string
	Language  string
}

// Config bounds the provider's bookkeeping.
type Config struct {
	// CallTimeout ages out callbacks with no response.
	CallTimeout   time.Duration
	SweepInterval time.Duration
	// QueueCap bounds the pre-readiness outbound queue; overflow drops the
	// oldest entry.
	QueueCap int
	// Readiness handshake retry policy.
	HandshakeBase     time.Duration
	HandshakeAttempts int
	// AnnounceDelay is the re-announce delay after start.
	AnnounceDelay time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		CallTimeout:       time.Minute,
		SweepInterval:     time.Second * 5,
		QueueCap:          64,
		HandshakeBase:     time.Millisecond * 250,
		HandshakeAttempts: 6,
		AnnounceDelay:     time.Millisecond * 500,
	}
}

type pendingCall struct {
	cb         func(json.RawMessage, *types.Error)
	createTime time.Time
	method     string
}

type core struct {
	lk      sync.Mutex
	nextID  int64
	calls   map[int64]*pendingCall
	queue   []*types.Envelope
	ready   bool
	lastErr error

	transport Transport
	events    *emitter
	info      types.ProviderInfo
	site      SiteInfo
	cfg       *Config
	log       *zap.SugaredLogger
	readyCh   chan struct{}
	readyOnce sync.Once
	version   string
}

// Provider is a chain-scoped view over one shared bridge. All views share a
// single correlation map, transport and readiness state.
type Provider struct {
	c         *core
	chain     string
	networkID string
}

func New(transport Transport, info types.ProviderInfo, site SiteInfo, version string, log *zap.SugaredLogger) *Provider {
	return NewWithConfig(transport, info, site, version, log, DefaultConfig())
}

func NewWithConfig(transport Transport, info types.ProviderInfo, site SiteInfo, version string, log *zap.SugaredLogger, cfg *Config) *Provider {
	c := &core{
		nextID:    0,
		calls:     make(map[int64]*pendingCall),
		transport: transport,
		events:    newEmitter(),
		info:      info,
		site:      site,
		cfg:       cfg,
		log:       log,
		readyCh:   make(chan struct{}),
		version:   version,
	}
	return &Provider{c: c, chain: "ethereum", networkID: "eip155:1"}
}

// ForChain returns a provider view scoped to another chain family. Used to
// build the aggregate multi-chain object exposed alongside the
// ethereum-shaped one.
func (p *Provider) ForChain(chain, networkID string) *Provider {
	return &Provider{c: p.c, chain: chain, networkID: networkID}
}

// DefaultNamespaces is the chain key set of the aggregate provider object.
var DefaultNamespaces = map[string]string{
	"ethereum":    "eip155:1",
	"bitcoin":     "bip122:000000000019d6689c085ae165831e93",
	"litecoin":    "bip122:12a765e31ffd4059bada1e25190f6e9",
	"dogecoin":    "bip122:1a91e3dace36e2be3bf030a65679fe82",
	"bitcoincash": "bip122:000000000000000000651ef99cb9fcbe",
	"cosmos":      "cosmos:cosmoshub-4",
	"osmosis":     "cosmos:osmosis-1",
	"thorchain":   "cosmos:thorchain-mainnet-v1",
	"ripple":      "xrpl:0",
}

// Namespaces returns one chain-scoped provider per supported chain key.
func (p *Provider) Namespaces() map[string]*Provider {
	out := make(map[string]*Provider, len(DefaultNamespaces))
	for chain, networkID := range DefaultNamespaces {
		out[chain] = p.ForChain(chain, networkID)
	}
	return out
}

// Start mounts the provider: read loop, callback sweep, readiness handshake
// and discovery announcements.
func (p *Provider) Start(ctx context.Context) {
	go p.c.readLoop(ctx)
	go p.c.sweep(ctx)
	go p.c.handshake(ctx)
	p.Announce()
	time.AfterFunc(p.c.cfg.AnnounceDelay, p.Announce)
}

func (p *Provider) Ready() bool {
	p.c.lk.Lock()
	defer p.c.lk.Unlock()
	return p.c.ready
}

// LastError reports a failed readiness handshake. The provider stays
// mounted regardless.
func (p *Provider) LastError() error {
	p.c.lk.Lock()
	defer p.c.lk.Unlock()
	return p.c.lastErr
}

// Request performs one provider call and blocks until the correlated
// response, the call timeout, or ctx ends.
func (p *Provider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	type outcome struct {
		result json.RawMessage
		err    *types.Error
	}
	ch := make(chan outcome, 1)
	p.SendAsync(method, params, func(result json.RawMessage, perr *types.Error) {
		ch <- outcome{result: result, err: perr}
	})
	select {
	case o := <-ch:
		if o.err != nil {
			return nil, o.err
		}
		return o.result, nil
	case <-ctx.Done():
		return nil, types.AsError(errors.Wrap(ctx.Err(), "request cancelled"))
	}
}

// Send is the legacy synchronous form of Request.
func (p *Provider) Send(method string, params ...interface{}) (json.RawMessage, error) {
	return p.Request(context.Background(), method, params...)
}

// SendAsync is the legacy callback form. The callback fires exactly once,
// from the read loop or the sweep.
func (p *Provider) SendAsync(method string, params []interface{}, cb func(json.RawMessage, *types.Error)) {
	if method == "" {
		cb(nil, types.ErrInvalidRequest("missing method"))
		return
	}
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, param := range params {
		raw, err := json.Marshal(param)
		if err != nil {
			cb(nil, types.ErrInvalidRequest("unserializable parameter: %v", err))
			return
		}
		rawParams = append(rawParams, raw)
	}

	info := &types.RequestInfo{
		ID:           uuid.NewString(),
		Method:       method,
		Params:       rawParams,
		Chain:        p.chain,
		NetworkID:    p.networkID,
		SiteURL:      p.c.site.URL,
		ScriptSource: ScriptSource,
		Version:      p.c.version,
		RequestTime:  time.Now().UTC(),
		Referrer:     p.c.site.Referrer,
		Href:         p.c.site.Href,
		UserAgent:    p.c.site.UserAgent,
		Platform:     p.c.site.Platform,
		Language:     p.c.site.Language,
	}
	p.c.dispatch(info, cb)
}

func (c *core) dispatch(info *types.RequestInfo, cb func(json.RawMessage, *types.Error)) {
	c.lk.Lock()
	c.nextID++
	id := c.nextID
	c.calls[id] = &pendingCall{cb: cb, createTime: time.Now(), method: info.Method}
	env := &types.Envelope{
		Source:      types.SourcePage,
		Type:        types.MsgWalletRequest,
		RequestID:   id,
		RequestInfo: info,
		Timestamp:   time.Now().UnixMilli(),
	}
	if !c.ready {
		c.enqueueLocked(env)
		c.lk.Unlock()
		return
	}
	c.lk.Unlock()
	c.transport.Post(env)
}

// enqueueLocked queues an envelope until readiness is confirmed, dropping
// the oldest entry on overflow and failing its caller immediately so no one
// hangs on a silently discarded request.
func (c *core) enqueueLocked(env *types.Envelope) {
	if len(c.queue) >= c.cfg.QueueCap {
		dropped := c.queue[0]
		c.queue = c.queue[1:]
		if call, ok := c.calls[dropped.RequestID]; ok {
			delete(c.calls, dropped.RequestID)
			go call.cb(nil, types.NewError(types.ErrCodeUpstream, "request dropped from outbound queue"))
		}
		c.log.Warnf("outbound queue full, dropped request %d (%s)", dropped.RequestID, dropped.RequestInfo.Method)
	}
	c.queue = append(c.queue, env)
}

func (c *core) readLoop(ctx context.Context) {
	for {
		select {
		case env, ok := <-c.transport.Messages():
			if !ok {
				return
			}
			switch env.Type {
			case types.MsgWalletResponse:
				c.resolve(env)
			case types.MsgReadinessConfirmed:
				c.markReady()
			case types.MsgRequestProvider:
				c.announce()
			default:
				c.log.Debugf("ignoring inbound envelope type %q", env.Type)
			}
		case <-ctx.Done():
			return
		}
	}
}

// resolve fires the stored callback for a correlated response exactly once;
// replays and late arrivals find no entry and are no-ops.
func (c *core) resolve(env *types.Envelope) {
	c.lk.Lock()
	call, ok := c.calls[env.RequestID]
	if ok {
		delete(c.calls, env.RequestID)
	}
	c.lk.Unlock()
	if !ok {
		c.log.Debugf("no pending call for response %d", env.RequestID)
		return
	}
	call.cb(env.Result, env.Error)
}

func (c *core) markReady() {
	c.lk.Lock()
	c.ready = true
	c.lastErr = nil
	flush := c.queue
	c.queue = nil
	c.lk.Unlock()
	for _, env := range flush {
		c.transport.Post(env)
	}
	c.readyOnce.Do(func() { close(c.readyCh) })
	c.events.Emit(EventConnect, map[string]string{"chainId": "0x1"})
}

// handshake verifies the relay is listening before queued traffic flushes.
// Bounded retries with exponential backoff; on exhaustion the provider
// stays mounted with LastError set.
func (c *core) handshake(ctx context.Context) {
	backoff := c.cfg.HandshakeBase
	for attempt := 1; attempt <= c.cfg.HandshakeAttempts; attempt++ {
		c.transport.Post(&types.Envelope{
			Source:    types.SourcePage,
			Type:      types.MsgReadinessCheck,
			Timestamp: time.Now().UnixMilli(),
		})
		select {
		case <-c.readyCh:
			c.log.Debugf("relay ready after %d attempt(s)", attempt)
			return
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return
		}
	}
	c.lk.Lock()
	c.lastErr = errors.Errorf("relay not ready after %d attempts", c.cfg.HandshakeAttempts)
	c.lk.Unlock()
	c.log.Warnf("readiness handshake gave up after %d attempts", c.cfg.HandshakeAttempts)
}

// sweep ages out callbacks so callers are never left hanging and the map
// stays bounded.
func (c *core) sweep(ctx context.Context) {
	tm := time.NewTicker(c.cfg.SweepInterval)
	defer tm.Stop()
	for {
		select {
		case <-tm.C:
			var expired []*pendingCall
			c.lk.Lock()
			for id, call := range c.calls {
				if time.Since(call.createTime) > c.cfg.CallTimeout {
					delete(c.calls, id)
					expired = append(expired, call)
				}
			}
			c.lk.Unlock()
			for _, call := range expired {
				call.cb(nil, types.NewError(types.ErrCodeUpstream, "no response within %s for %s", c.cfg.CallTimeout, call.method))
			}
		case <-ctx.Done():
			return
		}
	}
}
