package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"

	"github.com/bilgisen/kova/internal/utils"
)

var (
	ErrNotImage      = errors.New("content is not an image")
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

// LocalImages resolves image references served by this backend without a
// network round trip.
type LocalImages interface {
	Lookup(ctx context.Context, ref string) (data []byte, contentType string, ok bool)
}

// ImageLoader turns an image reference (data URI or http(s) URL) into bytes
type ImageLoader struct {
	client  *resty.Client
	maxSize int64
	local   LocalImages
}

func NewImageLoader(maxSize int64, timeout time.Duration, local LocalImages) *ImageLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImageLoader{
		client:  resty.New().SetTimeout(timeout),
		maxSize: maxSize,
		local:   local,
	}
}

func (l *ImageLoader) Load(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)

	if strings.HasPrefix(ref, "data:") {
		data, _, err := utils.DecodeDataURI(ref)
		if err != nil {
			return nil, err
		}
		return l.check(data)
	}

	if l.local != nil {
		if data, _, ok := l.local.Lookup(ctx, ref); ok {
			return l.check(data)
		}
	}

	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported image reference %q", ref)
	}

	data, err := l.download(ctx, ref)
	if err != nil {
		return nil, err
	}
	return l.check(data)
}

// download streams the body and stops reading one byte past maxSize
func (l *ImageLoader) download(ctx context.Context, ref string) ([]byte, error) {
	resp, err := l.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(ref)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode())
	}
	if l.maxSize <= 0 {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("download image: %w", err)
		}
		return data, nil
	}
	if resp.RawResponse.ContentLength > l.maxSize {
		return nil, ErrImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(body, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if int64(len(data)) > l.maxSize {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func (l *ImageLoader) check(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrNotImage
	}
	if l.maxSize > 0 && int64(len(data)) > l.maxSize {
		return nil, ErrImageTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	return &Image{MIMEType: mt.String(), Data: data}, nil
}
