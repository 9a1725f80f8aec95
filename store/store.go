package store

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Queue names. A record lives in exactly one queue at a time.
const (
	QueuePending          = "pending"
	QueueAwaitingApproval = "awaiting-approval"
	QueueCompleted        = "completed"
)

// Record statuses. Transitions are monotonic, completed records are
// immutable.
const (
	StatusRequest   = "request"
	StatusApproval  = "approval"
	StatusCompleted = "completed"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrRegression = errors.New("status may not move backwards")
	ErrImmutable  = errors.New("completed record is immutable")
)

var statusRank = map[string]int{
	StatusRequest:   0,
	StatusApproval:  1,
	StatusCompleted: 2,
}

// ValidTransition reports whether a record may move from one status to
// another. Equal statuses are allowed so payload updates within a queue are
// not rejected.
func ValidTransition(from, to string) bool {
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr >= fr
}

// Event is one wallet request record, progressively populated as the chain
// handler advances it through the queues.
type Event struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Queue         string    `gorm:"type:varchar(32);index" json:"-"`
	NetworkID     string    `gorm:"type:varchar(128)" json:"networkId"`
	Chain         string    `gorm:"type:varchar(32);index" json:"chain"`
	Type          string    `gorm:"type:varchar(64)" json:"type"`
	Request       []byte    `gorm:"type:text" json:"request,omitempty"`
	UnsignedTx    []byte    `gorm:"type:text" json:"unsignedTx,omitempty"`
	SignedTx      []byte    `gorm:"type:text" json:"signedTx,omitempty"`
	TxID          string    `gorm:"type:varchar(128)" json:"txid,omitempty"`
	Status        string    `gorm:"type:varchar(16)" json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	SiteURL       string    `gorm:"type:varchar(512)" json:"siteUrl,omitempty"`
	Referrer      string    `gorm:"type:varchar(512)" json:"referrer,omitempty"`
	UserAgent     string    `gorm:"type:varchar(512)" json:"userAgent,omitempty"`
	Platform      string    `gorm:"type:varchar(64)" json:"platform,omitempty"`
	Language      string    `gorm:"type:varchar(32)" json:"language,omitempty"`
	ScriptSource  string    `gorm:"type:varchar(128)" json:"scriptSource,omitempty"`
	ScriptVersion string    `gorm:"type:varchar(32)" json:"version,omitempty"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

func (Event) TableName() string {
	return "wallet_events"
}

// Change notifies a subscriber that a queue's contents moved.
type Change struct {
	Queue   string
	Event   *Event
	Removed bool
}

// Store is the durable three-queue record store shared by chain handlers,
// the approval gate and the UI surfaces.
type Store interface {
	Add(ctx context.Context, queue string, ev *Event) error
	Get(ctx context.Context, queue, id string) (*Event, error)
	List(ctx context.Context, queue string) ([]*Event, error)
	Update(ctx context.Context, ev *Event) error
	// Move shifts a record between queues and applies the new status,
	// enforcing monotonic transitions.
	Move(ctx context.Context, from, to, id, status string) (*Event, error)
	Remove(ctx context.Context, queue, id string) error
	Subscribe(queue string) (<-chan Change, func())
	PurgeOlderThan(ctx context.Context, queue string, age time.Duration) (int64, error)
}

// Hub fans queue changes out to subscribers. Slow subscribers drop
// notifications rather than block writers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Change
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Change)}
}

func (h *Hub) Subscribe(queue string) (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[queue] == nil {
		h.subs[queue] = make(map[int]chan Change)
	}
	id := h.next
	h.next++
	ch := make(chan Change, 16)
	h.subs[queue][id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[queue][id]; ok {
			delete(h.subs[queue], id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[c.Queue] {
		select {
		case ch <- c:
		default:
		}
	}
}
