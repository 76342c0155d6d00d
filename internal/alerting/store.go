package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"autoguard/internal/blobstore"
	"autoguard/internal/errdefs"
	"autoguard/internal/model"
)

const (
	AlertsKey       = "alerts"
	DefaultCapacity = 100
)

// Store is the bounded, newest-first alert list. Each operation reads the
// whole list from the blob store and mutations write it back before
// returning, all under one mutex.
type Store struct {
	mu       sync.Mutex
	blobs    blobstore.KV
	key      string
	capacity int
	now      func() time.Time
	lastID   int64
}

func NewStore(blobs blobstore.KV, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		blobs:    blobs,
		key:      AlertsKey,
		capacity: capacity,
		now:      time.Now,
	}
}

func (s *Store) Insert(ctx context.Context, draft model.AlertDraft) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.load(ctx)
	if err != nil {
		return model.Alert{}, err
	}

	now := s.now().UTC()
	alert := model.Alert{
		ID:        s.nextID(now, alerts),
		Severity:  draft.Severity,
		Type:      draft.Type,
		Message:   draft.Message,
		Source:    draft.Source,
		CreatedAt: now,
	}

	next := make([]model.Alert, 0, len(alerts)+1)
	next = append(next, alert)
	next = append(next, alerts...)
	if len(next) > s.capacity {
		next = next[:s.capacity]
	}
	if err := s.save(ctx, next); err != nil {
		return model.Alert{}, err
	}
	s.lastID = alert.ID
	return alert, nil
}

// List returns a copy of the collection, newest first.
func (s *Store) List(ctx context.Context) ([]model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) Get(ctx context.Context, id int64) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.load(ctx)
	if err != nil {
		return model.Alert{}, err
	}
	i := indexOf(alerts, id)
	if i < 0 {
		return model.Alert{}, fmt.Errorf("%w: %d", errdefs.ErrAlertNotFound, id)
	}
	return alerts[i], nil
}

// Resolve marks an alert resolved. Resolving an already resolved alert
// succeeds and keeps its original resolved_at.
func (s *Store) Resolve(ctx context.Context, id int64) (model.Alert, error) {
	return s.update(ctx, id, func(a *model.Alert, now time.Time) bool {
		if a.Resolved {
			return false
		}
		a.Resolved = true
		a.ResolvedAt = &now
		return true
	})
}

func (s *Store) MarkAutoHealed(ctx context.Context, id int64) (model.Alert, error) {
	return s.update(ctx, id, func(a *model.Alert, now time.Time) bool {
		if a.Resolved && a.AutoHealed {
			return false
		}
		a.Resolved = true
		a.AutoHealed = true
		if a.ResolvedAt == nil {
			a.ResolvedAt = &now
		}
		return true
	})
}

func (s *Store) update(ctx context.Context, id int64, mutate func(a *model.Alert, now time.Time) bool) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.load(ctx)
	if err != nil {
		return model.Alert{}, err
	}
	i := indexOf(alerts, id)
	if i < 0 {
		return model.Alert{}, fmt.Errorf("%w: %d", errdefs.ErrAlertNotFound, id)
	}
	if !mutate(&alerts[i], s.now().UTC()) {
		return alerts[i], nil
	}
	if err := s.save(ctx, alerts); err != nil {
		return model.Alert{}, err
	}
	return alerts[i], nil
}

// nextID derives the id from the wall clock in milliseconds and bumps it past
// the newest stored id so ids stay unique and increasing.
func (s *Store) nextID(now time.Time, alerts []model.Alert) int64 {
	id := now.UnixMilli()
	floor := s.lastID
	if len(alerts) > 0 && alerts[0].ID > floor {
		floor = alerts[0].ID
	}
	if id <= floor {
		id = floor + 1
	}
	return id
}

func (s *Store) load(ctx context.Context) ([]model.Alert, error) {
	raw, err := s.blobs.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, errdefs.ErrBlobNotFound) {
			return []model.Alert{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", errdefs.ErrStoreUnavailable, s.key, err)
	}
	var alerts []model.Alert
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &alerts); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", errdefs.ErrStoreUnavailable, s.key, err)
		}
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	return alerts, nil
}

func (s *Store) save(ctx context.Context, alerts []model.Alert) error {
	raw, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.blobs.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("%w: write %s: %v", errdefs.ErrStoreUnavailable, s.key, err)
	}
	return nil
}

func indexOf(alerts []model.Alert, id int64) int {
	for i := range alerts {
		if alerts[i].ID == id {
			return i
		}
	}
	return -1
}
