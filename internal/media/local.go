package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// LocalStore keeps images on disk under basePath/YYYY/MM/DD/<id><ext>
type LocalStore struct {
	basePath string
	maxSize  int64
	mu       sync.RWMutex
	now      func() time.Time
}

func NewLocalStore(basePath string, maxSize int64) (*LocalStore, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	return &LocalStore{
		basePath: basePath,
		maxSize:  maxSize,
		now:      time.Now,
	}, nil
}

// Put validates and writes an image, returning its new id
func (s *LocalStore) Put(ctx context.Context, contentType string, data []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	detected, err := sniff(contentType, data, s.maxSize)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create dated directory (YYYY/MM/DD)
	datePath := filepath.Join(s.basePath, s.now().Format("2006/01/02"))
	if err := os.MkdirAll(datePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	id := newID()
	filePath := filepath.Join(datePath, id+extension(detected))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return id, nil
}

// Get reads an image back by id
func (s *LocalStore) Get(ctx context.Context, id string) (*Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !validID(id) {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.find(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}

	return &Image{
		ID:          id,
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

func (s *LocalStore) find(id string) (string, error) {
	var found string
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())) == id {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("error walking the path: %w", err)
	}
	if found == "" {
		return "", ErrNotFound
	}
	return found, nil
}

func extension(contentType string) string {
	if mt := mimetype.Lookup(contentType); mt != nil {
		return mt.Extension()
	}
	return ""
}
