package testhelper

import (
	"context"
	"sync"

	"github.com/keepkey-community/wallet-gateway/approvals"
	"github.com/keepkey-community/wallet-gateway/store"
)

var _ approvals.Notifier = (*RecordingNotifier)(nil)

// RecordingNotifier captures every approval surface request and hands the
// record id to a channel so tests can settle it.
type RecordingNotifier struct {
	lk     sync.Mutex
	opened []*store.Event
	Ch     chan *store.Event
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{Ch: make(chan *store.Event, 16)}
}

func (n *RecordingNotifier) OpenApprovalSurface(ctx context.Context, rec *store.Event) error {
	n.lk.Lock()
	n.opened = append(n.opened, rec)
	n.lk.Unlock()
	select {
	case n.Ch <- rec:
	default:
	}
	return nil
}

func (n *RecordingNotifier) Opened() []*store.Event {
	n.lk.Lock()
	defer n.lk.Unlock()
	out := make([]*store.Event, len(n.opened))
	copy(out, n.opened)
	return out
}
