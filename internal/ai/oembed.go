package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/kova/internal/cache"
	"github.com/bilgisen/kova/internal/logger"
	"github.com/bilgisen/kova/internal/utils"
	"github.com/go-resty/resty/v2"
)

const oembedUserAgent = "Mozilla/5.0 (compatible; KovaBot/1.0)"

// Metadata is the oEmbed description of a video
type Metadata struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	AuthorURL string `json:"authorUrl"`
	Thumbnail string `json:"thumbnail"`
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// MetadataFetcher reads oEmbed metadata, caching hits
type MetadataFetcher struct {
	client   *resty.Client
	endpoint string
	cache    cache.Cache
	ttl      time.Duration
}

func NewMetadataFetcher(endpoint string, timeout time.Duration, c cache.Cache, ttl time.Duration) *MetadataFetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MetadataFetcher{
		client:   resty.New().SetTimeout(timeout).SetHeader("User-Agent", oembedUserAgent),
		endpoint: endpoint,
		cache:    c,
		ttl:      ttl,
	}
}

func (f *MetadataFetcher) cacheKey(url string) string {
	return "oembed:" + utils.Hash(url)
}

// Fetch returns nil, nil when the endpoint knows nothing about url
func (f *MetadataFetcher) Fetch(ctx context.Context, url string) (*Metadata, error) {
	log := logger.Get()

	if f.cache != nil {
		var cached Metadata
		found, err := f.cache.GetJSON(ctx, f.cacheKey(url), &cached)
		if err != nil {
			log.Warn().Err(err).Msg("oEmbed cache read failed")
		} else if found {
			return &cached, nil
		}
	}

	var body oembedResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("url", url).
		SetResult(&body).
		Get(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("oembed request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("oembed returned status %d", resp.StatusCode())
	}
	if body.Title == "" && body.AuthorName == "" {
		return nil, nil
	}

	meta := &Metadata{
		Title:     body.Title,
		Author:    body.AuthorName,
		AuthorURL: body.AuthorURL,
		Thumbnail: body.ThumbnailURL,
	}

	if f.cache != nil {
		if err := f.cache.SetJSON(ctx, f.cacheKey(url), meta, f.ttl); err != nil {
			log.Warn().Err(err).Msg("oEmbed cache write failed")
		}
	}
	return meta, nil
}
