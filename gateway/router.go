package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/keepkey-community/wallet-gateway/chains"
	"github.com/keepkey-community/wallet-gateway/metrics"
	"github.com/keepkey-community/wallet-gateway/types"
)

var log = logging.Logger("dispatch_router")

// Router validates relayed requests and dispatches them to the chain
// handler registered for the request's chain-family tag. New chains
// register a handler instead of editing a switch.
type Router struct {
	lk       sync.RWMutex
	handlers map[string]chains.Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]chains.Handler)}
}

func (r *Router) Register(tag string, h chains.Handler) {
	r.lk.Lock()
	defer r.lk.Unlock()
	r.handlers[tag] = h
	log.Infof("registered chain handler %s", tag)
}

// Chains lists the registered chain-family tags.
func (r *Router) Chains() []string {
	r.lk.RLock()
	defer r.lk.RUnlock()
	tags := make([]string, 0, len(r.handlers))
	for tag := range r.handlers {
		tags = append(tags, tag)
	}
	return tags
}

// Dispatch routes a request to its chain handler. Every error leaving here
// is a structured provider error; raw internal failures never cross the
// relay boundary.
func (r *Router) Dispatch(ctx context.Context, req *types.RequestInfo) (json.RawMessage, error) {
	if req == nil {
		return nil, types.ErrInvalidRequest("missing request info")
	}
	if req.Method == "" {
		return nil, types.ErrInvalidRequest("missing method")
	}
	if req.Chain == "" {
		return nil, types.ErrInvalidRequest("missing chain")
	}

	r.lk.RLock()
	handler, ok := r.handlers[req.Chain]
	r.lk.RUnlock()
	if !ok {
		return nil, types.ErrUnsupportedChain(req.Chain)
	}

	mctx, _ := tag.New(ctx, tag.Upsert(metrics.ChainKey, req.Chain), tag.Upsert(metrics.MethodKey, req.Method))
	metrics.RequestCount.Tick(mctx)
	start := time.Now()

	result, err := handler.Handle(ctx, req)
	stats.Record(mctx, metrics.RequestDuration.M(metrics.SinceInMilliseconds(start)))
	if err != nil {
		metrics.RequestErrors.Tick(mctx)
		perr := types.AsError(err)
		log.Debugf("request %s %s/%s failed: code %d: %s", req.ID, req.Chain, req.Method, perr.Code, perr.Message)
		return nil, perr
	}
	return result, nil
}
