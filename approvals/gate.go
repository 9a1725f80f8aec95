package approvals

import (
	"context"
	"sort"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/keepkey-community/wallet-gateway/metrics"
	"github.com/keepkey-community/wallet-gateway/store"
	"github.com/keepkey-community/wallet-gateway/types"
)

var log = logging.Logger("approval_gate")

// ErrNotFound marks a Resolve for an id no Require call is waiting on.
var ErrNotFound = errors.New("approval not found")

// Notifier opens the user-facing approval surface for a freshly persisted
// record.
type Notifier interface {
	OpenApprovalSurface(ctx context.Context, rec *store.Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, rec *store.Event) error

func (f NotifierFunc) OpenApprovalSurface(ctx context.Context, rec *store.Event) error {
	return f(ctx, rec)
}

// LogNotifier only logs; useful when no approval UI is attached.
var LogNotifier = NotifierFunc(func(_ context.Context, rec *store.Event) error {
	log.Infof("approval required for %s (%s %s)", rec.ID, rec.Chain, rec.Type)
	return nil
})

type decision struct {
	approved bool
}

type pendingApproval struct {
	result     chan decision
	createTime time.Time
	chain      string
}

// Gate mediates user consent. Each Require call persists a record, opens the
// approval surface and blocks until a correlated Resolve arrives. Calls are
// independent; the gate never serializes concurrent approvals.
type Gate struct {
	lk       sync.Mutex
	waiting  map[string]*pendingApproval
	st       store.Store
	notifier Notifier
	cfg      *types.RequestConfig

	// surfaceOpen tracks whether an approval surface has been opened and not
	// yet drained; owned here rather than package state so instances stay
	// independent.
	surfaceOpen bool
}

func NewGate(ctx context.Context, st store.Store, notifier Notifier, cfg *types.RequestConfig) *Gate {
	g := &Gate{
		waiting:  make(map[string]*pendingApproval),
		st:       st,
		notifier: notifier,
		cfg:      cfg,
	}
	if cfg.ApprovalTimeout > 0 {
		go g.cleanApprovals(ctx)
	}
	return g
}

// Require blocks until the user decides on the given record. The record is
// persisted to the pending queue with status request before the surface
// opens. Returns true on approval, false on denial; an error means the gate
// itself failed and the caller must treat the request as rejected.
func (g *Gate) Require(ctx context.Context, rec *store.Event) (bool, error) {
	rec.Status = store.StatusRequest
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := g.st.Add(ctx, store.QueuePending, rec); err != nil {
		return false, errors.Wrapf(err, "persist pending record %s", rec.ID)
	}

	pending := &pendingApproval{
		result:     make(chan decision, 1),
		createTime: time.Now(),
		chain:      rec.Chain,
	}
	g.lk.Lock()
	g.waiting[rec.ID] = pending
	g.surfaceOpen = true
	g.lk.Unlock()

	mctx, _ := tag.New(ctx, tag.Upsert(metrics.ChainKey, rec.Chain), tag.Upsert(metrics.SiteKey, rec.SiteURL))
	stats.Record(mctx, metrics.ApprovalRequested.M(1))

	if err := g.notifier.OpenApprovalSurface(ctx, rec); err != nil {
		g.drop(ctx, rec.ID)
		return false, errors.Wrap(err, "open approval surface")
	}

	start := time.Now()
	select {
	case d := <-pending.result:
		stats.Record(mctx, metrics.ApprovalWait.M(metrics.SinceInMilliseconds(start)))
		if !d.approved {
			stats.Record(mctx, metrics.ApprovalRejected.M(1))
			// denied records stay out of the queues; the surface already
			// showed them and the caller gets a structured rejection
			if err := g.st.Remove(ctx, store.QueuePending, rec.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Warnf("remove denied record %s: %v", rec.ID, err)
			}
			return false, nil
		}
		stats.Record(mctx, metrics.ApprovalApproved.M(1))
		if _, err := g.st.Move(ctx, store.QueuePending, store.QueueAwaitingApproval, rec.ID, store.StatusApproval); err != nil {
			return false, errors.Wrapf(err, "advance approved record %s", rec.ID)
		}
		return true, nil
	case <-ctx.Done():
		g.drop(ctx, rec.ID)
		return false, errors.Wrap(ctx.Err(), "approval wait cancelled")
	}
}

// Resolve delivers the user decision for a record id. Exactly one waiting
// Require call observes it; resolving an unknown or already-resolved id
// fails with a not-found error.
func (g *Gate) Resolve(ctx context.Context, id string, approved bool) error {
	g.lk.Lock()
	pending, ok := g.waiting[id]
	if ok {
		delete(g.waiting, id)
	}
	if len(g.waiting) == 0 {
		g.surfaceOpen = false
	}
	g.lk.Unlock()
	if !ok {
		return errors.Wrapf(ErrNotFound, "approval %s", id)
	}
	pending.result <- decision{approved: approved}
	return nil
}

// SurfaceOpen reports whether an approval surface is believed open.
func (g *Gate) SurfaceOpen() bool {
	g.lk.Lock()
	defer g.lk.Unlock()
	return g.surfaceOpen
}

// Waiting returns the ids currently blocked on a decision, newest first.
func (g *Gate) Waiting() []string {
	g.lk.Lock()
	defer g.lk.Unlock()
	ids := make([]string, 0, len(g.waiting))
	for id := range g.waiting {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return g.waiting[ids[i]].createTime.After(g.waiting[ids[j]].createTime)
	})
	return ids
}

func (g *Gate) drop(ctx context.Context, id string) {
	g.lk.Lock()
	delete(g.waiting, id)
	if len(g.waiting) == 0 {
		g.surfaceOpen = false
	}
	g.lk.Unlock()
	if err := g.st.Remove(ctx, store.QueuePending, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warnf("remove abandoned record %s: %v", id, err)
	}
}

// cleanApprovals reclaims gates whose surface was closed without a decision.
func (g *Gate) cleanApprovals(ctx context.Context) {
	tm := time.NewTicker(g.cfg.ClearInterval)
	defer tm.Stop()
	for {
		select {
		case <-tm.C:
			g.lk.Lock()
			for id, pending := range g.waiting {
				if time.Since(pending.createTime) > g.cfg.ApprovalTimeout {
					delete(g.waiting, id)
					// never block the sweep; the decision may race in at the
					// same moment
					select {
					case pending.result <- decision{approved: false}:
						log.Warnf("approval %s timed out after %s", id, g.cfg.ApprovalTimeout)
					default:
					}
				}
			}
			if len(g.waiting) == 0 {
				g.surfaceOpen = false
			}
			g.lk.Unlock()
		case <-ctx.Done():
			log.Warnf("return clean approvals")
			return
		}
	}
}
