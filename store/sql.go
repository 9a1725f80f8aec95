package store

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var log = logging.Logger("event_store")

// SQLStore persists records in postgres. Change notifications are in-process
// only, each gateway instance owns its own store.
type SQLStore struct {
	db  *gorm.DB
	hub *Hub
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open event store")
	}
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, errors.Wrap(err, "migrate event store")
	}
	return &SQLStore{db: db, hub: NewHub()}, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Add(ctx context.Context, queue string, ev *Event) error {
	ev.Queue = queue
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return errors.Wrapf(err, "add record %s to %s", ev.ID, queue)
	}
	s.hub.Publish(Change{Queue: queue, Event: ev})
	return nil
}

func (s *SQLStore) Get(ctx context.Context, queue, id string) (*Event, error) {
	var ev Event
	err := s.db.WithContext(ctx).Where("queue = ? AND id = ?", queue, id).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *SQLStore) List(ctx context.Context, queue string) ([]*Event, error) {
	var evs []*Event
	err := s.db.WithContext(ctx).Where("queue = ?", queue).Order("timestamp desc").Find(&evs).Error
	return evs, err
}

func (s *SQLStore) Update(ctx context.Context, ev *Event) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur Event
		err := tx.Where("id = ?", ev.ID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur.Status == StatusCompleted {
			return ErrImmutable
		}
		if !ValidTransition(cur.Status, ev.Status) {
			return ErrRegression
		}
		ev.Queue = cur.Queue
		return tx.Save(ev).Error
	})
	if err != nil {
		return err
	}
	s.hub.Publish(Change{Queue: ev.Queue, Event: ev})
	return nil
}

func (s *SQLStore) Move(ctx context.Context, from, to, id, status string) (*Event, error) {
	var moved *Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur Event
		err := tx.Where("queue = ? AND id = ?", from, id).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur.Status == StatusCompleted {
			return ErrImmutable
		}
		if !ValidTransition(cur.Status, status) {
			return ErrRegression
		}
		cur.Queue = to
		cur.Status = status
		cur.Timestamp = time.Now().UTC()
		moved = &cur
		return tx.Save(&cur).Error
	})
	if err != nil {
		return nil, err
	}
	s.hub.Publish(Change{Queue: from, Event: moved, Removed: true})
	s.hub.Publish(Change{Queue: to, Event: moved})
	return moved, nil
}

func (s *SQLStore) Remove(ctx context.Context, queue, id string) error {
	res := s.db.WithContext(ctx).Where("queue = ? AND id = ?", queue, id).Delete(&Event{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.hub.Publish(Change{Queue: queue, Event: &Event{ID: id, Queue: queue}, Removed: true})
	return nil
}

func (s *SQLStore) Subscribe(queue string) (<-chan Change, func()) {
	return s.hub.Subscribe(queue)
}

func (s *SQLStore) PurgeOlderThan(ctx context.Context, queue string, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	res := s.db.WithContext(ctx).Where("queue = ? AND timestamp < ?", queue, cutoff).Delete(&Event{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Infof("purged %d records older than %s from %s", res.RowsAffected, age, queue)
	}
	return res.RowsAffected, nil
}
