package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bilgisen/kova/internal/models"
)

// MemoryStore keeps records in process memory. Records are cloned on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*models.Content
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*models.Content)}
}

func (s *MemoryStore) Create(ctx context.Context, c *models.Content) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		return fmt.Errorf("content id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[c.ID]; exists {
		return fmt.Errorf("content %s already exists", c.ID)
	}
	s.items[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, deviceID, id string) (*models.Content, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Owned(deviceID) {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*models.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) View(ctx context.Context, deviceID, id string) (*models.Content, error) {
	return s.Update(ctx, id, viewMutator(deviceID))
}

func (s *MemoryStore) device(deviceID string) []*models.Content {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Content
	for _, c := range s.items {
		if c.Owned(deviceID) {
			out = append(out, c.Clone())
		}
	}
	sortNewest(out)
	return out
}

func (s *MemoryStore) List(ctx context.Context, deviceID string, opts ListOptions) ([]*models.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.normalize()
	return paginate(filterType(s.device(deviceID), opts.ContentType), opts), nil
}

func (s *MemoryStore) Search(ctx context.Context, deviceID string, opts SearchOptions) ([]*models.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return search(s.device(deviceID), opts.normalize()), nil
}

func (s *MemoryStore) Delete(ctx context.Context, deviceID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[id]
	if !ok || !c.Owned(deviceID) {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn Mutator) (*models.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	settle(current, next)

	s.items[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context, deviceID string) (map[models.ProcessingStatus]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return countStatuses(s.device(deviceID)), nil
}

func (s *MemoryStore) ListStale(ctx context.Context, status models.ProcessingStatus, before time.Time, limit int) ([]*models.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []*models.Content
	for _, c := range s.items {
		if c.ProcessingStatus == status && c.UpdatedAt.Before(before) {
			out = append(out, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
