package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/pkg/metrics"
)

// MemoryStore keeps assessments in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]model.Assessment
	byUser map[string][]string // ids, newest first
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	c := newConfig(opts)
	return &MemoryStore{
		byID:   make(map[string]model.Assessment),
		byUser: make(map[string][]string),
		now:    c.now,
	}
}

func (s *MemoryStore) Save(_ context.Context, a model.Assessment) error {
	defer observe(opSave, time.Now())
	if err := validate(a); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; ok {
		return ErrDuplicateID
	}
	a = a.Clone()
	s.byID[a.ID] = a

	ids := s.byUser[a.UserID]
	i := sort.Search(len(ids), func(i int) bool { return newerFirst(a, s.byID[ids[i]]) })
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = a.ID
	s.byUser[a.UserID] = ids

	metrics.UpdateStoreRecords(len(s.byID))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Assessment, error) {
	defer observe(opGet, time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return model.Assessment{}, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) History(_ context.Context, userID string, limit int) ([]model.Assessment, error) {
	defer observe(opHistory, time.Now())
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]model.Assessment, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) AttachReport(_ context.Context, id, report string) error {
	return s.update(id, model.ReportReady, report, "")
}

func (s *MemoryStore) MarkReportFailed(_ context.Context, id, reason string) error {
	return s.update(id, model.ReportFailed, "", reason)
}

func (s *MemoryStore) update(id string, status model.ReportStatus, report, reason string) error {
	defer observe(opUpdate, time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.byID[id] = withReport(a, status, report, reason, s.now())
	return nil
}

func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
