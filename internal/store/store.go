package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bilgisen/kova/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the id (and device, where given)
	ErrNotFound = errors.New("content not found")
	// ErrConflict is returned when an update keeps losing optimistic-lock races
	ErrConflict = errors.New("content modified concurrently")
)

const (
	DefaultListLimit   = 50
	MaxListLimit       = 200
	DefaultSearchLimit = 20
)

// ListOptions filters and paginates a device listing
type ListOptions struct {
	ContentType models.ContentType
	Page        int
	Limit       int
}

// SearchOptions describes a case-insensitive substring search
type SearchOptions struct {
	Query       string
	ContentType models.ContentType
	Limit       int
}

// Mutator edits a record in place. Returning an error aborts the write and
// the error is passed through to the caller of Update.
type Mutator func(c *models.Content) error

// Store persists content records. Every read scoped by deviceID must never
// return a record owned by another device.
type Store interface {
	Create(ctx context.Context, c *models.Content) error
	Get(ctx context.Context, deviceID, id string) (*models.Content, error)
	GetByID(ctx context.Context, id string) (*models.Content, error)
	// View returns the record and increments its view count
	View(ctx context.Context, deviceID, id string) (*models.Content, error)
	List(ctx context.Context, deviceID string, opts ListOptions) ([]*models.Content, error)
	Search(ctx context.Context, deviceID string, opts SearchOptions) ([]*models.Content, error)
	Delete(ctx context.Context, deviceID, id string) error
	// Update applies fn atomically with respect to other Update calls on the same record
	Update(ctx context.Context, id string, fn Mutator) (*models.Content, error)
	CountByStatus(ctx context.Context, deviceID string) (map[models.ProcessingStatus]int, error)
	// ListStale returns records in status whose UpdatedAt is before the cutoff, oldest first
	ListStale(ctx context.Context, status models.ProcessingStatus, before time.Time, limit int) ([]*models.Content, error)
	Close() error
}

func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultListLimit
	case o.Limit > MaxListLimit:
		o.Limit = MaxListLimit
	}
	return o
}

func (o SearchOptions) normalize() SearchOptions {
	o.Query = strings.ToLower(strings.TrimSpace(o.Query))
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	return o
}

// sortNewest orders by SavedAt descending, then by id for a stable order
func sortNewest(items []*models.Content) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SavedAt.Equal(items[j].SavedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].SavedAt.After(items[j].SavedAt)
	})
}

func filterType(items []*models.Content, ct models.ContentType) []*models.Content {
	if ct == "" {
		return items
	}
	out := items[:0:0]
	for _, c := range items {
		if c.ContentType == ct {
			out = append(out, c)
		}
	}
	return out
}

func paginate(items []*models.Content, opts ListOptions) []*models.Content {
	start := (opts.Page - 1) * opts.Limit
	if start >= len(items) {
		return []*models.Content{}
	}
	end := start + opts.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// matches reports whether the lowercased query is a substring of the title,
// the description or any tag
func matches(c *models.Content, query string) bool {
	if query == "" {
		return false
	}
	if strings.Contains(strings.ToLower(c.Title), query) ||
		strings.Contains(strings.ToLower(c.Description), query) {
		return true
	}
	for _, tag := range c.AITags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func search(items []*models.Content, opts SearchOptions) []*models.Content {
	out := make([]*models.Content, 0, opts.Limit)
	for _, c := range filterType(items, opts.ContentType) {
		if matches(c, opts.Query) {
			out = append(out, c)
			if len(out) == opts.Limit {
				break
			}
		}
	}
	return out
}

func countStatuses(items []*models.Content) map[models.ProcessingStatus]int {
	counts := make(map[models.ProcessingStatus]int, len(models.Statuses))
	for _, s := range models.Statuses {
		counts[s] = 0
	}
	for _, c := range items {
		counts[c.ProcessingStatus]++
	}
	return counts
}

// settle runs after every mutator: identity fields are restored, and
// processedAt and errorMessage only survive on the states that own them.
func settle(current, next *models.Content) {
	next.ID, next.DeviceID, next.URL, next.ContentType = current.ID, current.DeviceID, current.URL, current.ContentType
	if !next.ProcessingStatus.Terminal() {
		next.ProcessedAt = nil
	}
	if next.ProcessingStatus != models.StatusFailed {
		next.ErrorMessage = ""
	}
}

func viewMutator(deviceID string) Mutator {
	return func(c *models.Content) error {
		if !c.Owned(deviceID) {
			return ErrNotFound
		}
		c.ViewCount++
		return nil
	}
}
