package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// MemoryStore is an in-process Storage (tests, dry runs, STORAGE_BACKEND=memory)
type MemoryStore struct {
	mu        sync.RWMutex
	universes map[contracts.WeekKey]*contracts.WeeklyUniverse
	positions map[string]*contracts.Position
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		universes: make(map[contracts.WeekKey]*contracts.WeeklyUniverse),
		positions: make(map[string]*contracts.Position),
		now:       time.Now,
	}
}

// SaveUniverse stores a copy; a frozen week cannot be overwritten
func (s *MemoryStore) SaveUniverse(ctx context.Context, u *contracts.WeeklyUniverse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.universes[u.WeekKey]; ok && existing.Frozen {
		return contracts.ImmutableStateViolation(u.WeekKey)
	}
	c := u.Clone()
	c.UpdatedAt = s.now()
	s.universes[u.WeekKey] = c
	return nil
}

// LoadUniverse returns a copy of the stored week
func (s *MemoryStore) LoadUniverse(ctx context.Context, week contracts.WeekKey) (*contracts.WeeklyUniverse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.universes[week]
	if !ok {
		return nil, fmt.Errorf("universe %s: %w", week, contracts.ErrNotFound)
	}
	return u.Clone(), nil
}

// SavePosition upserts a copy of the position
func (s *MemoryStore) SavePosition(ctx context.Context, p *contracts.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *p
	s.positions[p.ID] = &c
	return nil
}

// LoadOpenPositions returns OPEN and PENDING_CLOSE positions ordered by entry time
func (s *MemoryStore) LoadOpenPositions(ctx context.Context) ([]*contracts.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*contracts.Position
	for _, p := range s.positions {
		if p.IsActive() {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].EntryTime.Before(out[j].EntryTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// LoadClosedSince returns CLOSED positions with ClosedAt >= since, oldest close first
func (s *MemoryStore) LoadClosedSince(ctx context.Context, since time.Time) ([]*contracts.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*contracts.Position
	for _, p := range s.positions {
		if p.Status != contracts.PositionClosed || p.ClosedAt == nil || p.ClosedAt.Before(since) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ClosedAt.Equal(*out[j].ClosedAt) {
			return out[i].ClosedAt.Before(*out[j].ClosedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Position returns a stored position regardless of status
func (s *MemoryStore) Position(id string) (contracts.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return contracts.Position{}, false
	}
	return *p, true
}
