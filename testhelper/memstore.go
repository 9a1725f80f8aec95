package testhelper

import (
	"context"
	"sync"
	"time"

	"github.com/keepkey-community/wallet-gateway/store"
)

var _ store.Store = (*MemStore)(nil)

// MemStore keeps the three queues in memory with the same transition rules
// as the durable store.
type MemStore struct {
	lk     sync.Mutex
	events map[string]*store.Event
	hub    *store.Hub
}

func NewMemStore() *MemStore {
	return &MemStore{
		events: make(map[string]*store.Event),
		hub:    store.NewHub(),
	}
}

func (m *MemStore) Add(ctx context.Context, queue string, ev *store.Event) error {
	m.lk.Lock()
	cp := *ev
	cp.Queue = queue
	m.events[cp.ID] = &cp
	m.lk.Unlock()
	m.hub.Publish(store.Change{Queue: queue, Event: &cp})
	return nil
}

func (m *MemStore) Get(ctx context.Context, queue, id string) (*store.Event, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	ev, ok := m.events[id]
	if !ok || ev.Queue != queue {
		return nil, store.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *MemStore) List(ctx context.Context, queue string) ([]*store.Event, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	var out []*store.Event
	for _, ev := range m.events {
		if ev.Queue == queue {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) Update(ctx context.Context, ev *store.Event) error {
	m.lk.Lock()
	cur, ok := m.events[ev.ID]
	if !ok {
		m.lk.Unlock()
		return store.ErrNotFound
	}
	if cur.Status == store.StatusCompleted {
		m.lk.Unlock()
		return store.ErrImmutable
	}
	if !store.ValidTransition(cur.Status, ev.Status) {
		m.lk.Unlock()
		return store.ErrRegression
	}
	cp := *ev
	cp.Queue = cur.Queue
	m.events[cp.ID] = &cp
	m.lk.Unlock()
	m.hub.Publish(store.Change{Queue: cp.Queue, Event: &cp})
	return nil
}

func (m *MemStore) Move(ctx context.Context, from, to, id, status string) (*store.Event, error) {
	m.lk.Lock()
	cur, ok := m.events[id]
	if !ok || cur.Queue != from {
		m.lk.Unlock()
		return nil, store.ErrNotFound
	}
	if cur.Status == store.StatusCompleted {
		m.lk.Unlock()
		return nil, store.ErrImmutable
	}
	if !store.ValidTransition(cur.Status, status) {
		m.lk.Unlock()
		return nil, store.ErrRegression
	}
	cur.Queue = to
	cur.Status = status
	cp := *cur
	m.lk.Unlock()
	m.hub.Publish(store.Change{Queue: from, Event: &cp, Removed: true})
	m.hub.Publish(store.Change{Queue: to, Event: &cp})
	return &cp, nil
}

func (m *MemStore) Remove(ctx context.Context, queue, id string) error {
	m.lk.Lock()
	ev, ok := m.events[id]
	if !ok || ev.Queue != queue {
		m.lk.Unlock()
		return store.ErrNotFound
	}
	delete(m.events, id)
	cp := *ev
	m.lk.Unlock()
	m.hub.Publish(store.Change{Queue: queue, Event: &cp, Removed: true})
	return nil
}

func (m *MemStore) Subscribe(queue string) (<-chan store.Change, func()) {
	return m.hub.Subscribe(queue)
}

func (m *MemStore) PurgeOlderThan(ctx context.Context, queue string, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	m.lk.Lock()
	defer m.lk.Unlock()
	var purged int64
	for id, ev := range m.events {
		if ev.Queue == queue && ev.Timestamp.Before(cutoff) {
			delete(m.events, id)
			purged++
		}
	}
	return purged, nil
}
