package notifications

import (
	"context"
	"sync"
	"time"

	"tmis-business-guru/internal/models"
)

// WatermarkStore persists notification watermarks per role, user and kind. Set never moves a
// watermark backwards, so concurrent writers cannot undo a newer clear.
type WatermarkStore interface {
	Get(ctx context.Context, role, userID string, kind models.WatermarkKind) (time.Time, bool, error)
	Set(ctx context.Context, role, userID string, kind models.WatermarkKind, at time.Time) error
	Delete(ctx context.Context, role, userID string, kind models.WatermarkKind) error
}

// MemoryStore keeps watermarks in process. It is the default for single instance deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	marks map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: make(map[string]time.Time)}
}

func (s *MemoryStore) Get(_ context.Context, role, userID string, kind models.WatermarkKind) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.marks[kind.StorageKey(role, userID)]
	return at, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, role, userID string, kind models.WatermarkKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := kind.StorageKey(role, userID)
	if cur, ok := s.marks[key]; ok && !at.After(cur) {
		return nil
	}
	s.marks[key] = at
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, role, userID string, kind models.WatermarkKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks, kind.StorageKey(role, userID))
	return nil
}
