package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/bilgisen/kova/internal/config"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no image is stored under the id
	ErrNotFound = errors.New("image not found")
	// ErrNotImage is returned when an upload does not sniff as image/*
	ErrNotImage = errors.New("file is not an image")
	// ErrTooLarge is returned when an upload exceeds the size limit
	ErrTooLarge = errors.New("image exceeds size limit")
)

// RoutePrefix is the public path images are served under
const RoutePrefix = "/api/image/"

// Image is a stored bitmap
type Image struct {
	ID          string
	ContentType string
	Data        []byte
}

// Store keeps uploaded images addressable by id
type Store interface {
	Put(ctx context.Context, contentType string, data []byte) (string, error)
	Get(ctx context.Context, id string) (*Image, error)
}

// New picks R2 when credentials are configured, local disk otherwise
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.R2Enabled() {
		return NewR2Store(ctx, R2Options{
			Endpoint:    cfg.R2EndpointURL(),
			AccessKey:   cfg.R2AccessKey,
			SecretKey:   cfg.R2SecretKey,
			Bucket:      cfg.R2Bucket,
			MaxFileSize: cfg.MaxFileSize,
		})
	}
	return NewLocalStore(filepath.Join(cfg.StoragePath, "images"), cfg.MaxFileSize)
}

// sniff checks an upload and returns the detected MIME type. A declared
// content type is only used to reject obvious non-images early.
func sniff(declared string, data []byte, maxSize int64) (string, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" && !strings.HasPrefix(declared, "image/") {
		return "", fmt.Errorf("%w: declared %s", ErrNotImage, declared)
	}
	if len(data) == 0 {
		return "", ErrNotImage
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	return mt.String(), nil
}

// validID rejects anything that is not a generated image id, which also
// keeps ids safe to use as file and object names.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID() string {
	return uuid.NewString()
}

// Resolver maps image ids to public URLs and back
type Resolver struct {
	store   Store
	baseURL string
}

func NewResolver(store Store, baseURL string) *Resolver {
	return &Resolver{store: store, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// URL returns the public URL of an image. fallbackBase is used when no
// public URL is configured.
func (r *Resolver) URL(fallbackBase, id string) string {
	base := r.baseURL
	if base == "" {
		base = strings.TrimSuffix(fallbackBase, "/")
	}
	return base + RoutePrefix + id
}

// Lookup serves references to images this backend stores without going
// through HTTP.
func (r *Resolver) Lookup(ctx context.Context, ref string) ([]byte, string, bool) {
	id, ok := r.idFromRef(ref)
	if !ok {
		return nil, "", false
	}
	img, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, "", false
	}
	return img.Data, img.ContentType, true
}

func (r *Resolver) idFromRef(ref string) (string, bool) {
	if r.baseURL != "" && !strings.HasPrefix(ref, r.baseURL+RoutePrefix) {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	id, ok := strings.CutPrefix(u.Path, RoutePrefix)
	if !ok || !validID(id) {
		return "", false
	}
	return id, true
}
