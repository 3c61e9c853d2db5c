package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bilgisen/kova/internal/logger"
	"github.com/bilgisen/kova/internal/media"
	"github.com/bilgisen/kova/internal/middleware"
	"github.com/bilgisen/kova/internal/models"
	"github.com/bilgisen/kova/internal/pipeline"
	"github.com/bilgisen/kova/internal/store"
	"github.com/bilgisen/kova/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const recentCount = 6

// Enricher schedules and observes background enrichment
type Enricher interface {
	Submit(c *models.Content) error
	Reprocess(ctx context.Context, id string) (*models.Content, error)
	Stats() pipeline.Stats
}

// Sweeper re-admits records on demand
type Sweeper interface {
	RunNow(ctx context.Context) (pipeline.SweepResult, error)
}

type Handlers struct {
	store    store.Store
	enricher Enricher
	sweeper  Sweeper
	images   media.Store
	resolver *media.Resolver
	maxSize  int64
	now      func() time.Time
}

type Deps struct {
	Store       store.Store
	Enricher    Enricher
	Sweeper     Sweeper
	Images      media.Store
	Resolver    *media.Resolver
	MaxFileSize int64
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		store:    d.Store,
		enricher: d.Enricher,
		sweeper:  d.Sweeper,
		images:   d.Images,
		resolver: d.Resolver,
		maxSize:  d.MaxFileSize,
		now:      time.Now,
	}
}

type saveRequest struct {
	DeviceID    string `json:"deviceId" validate:"required"`
	URL         string `json:"url" validate:"required"`
	ContentType string `json:"contentType" validate:"omitempty,oneof=tiktok screenshot video image other"`
}

type listQuery struct {
	Type  string `query:"type" validate:"omitempty,oneof=tiktok screenshot video image other"`
	Limit int    `query:"limit" validate:"gte=0"`
	Page  int    `query:"page" validate:"gte=0"`
}

type searchQuery struct {
	Query string `query:"query"`
	Type  string `query:"type" validate:"omitempty,oneof=tiktok screenshot video image other"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   h.now().Format(time.RFC3339),
	})
}

// notFound maps store sentinels to 404 and passes everything else through
func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, media.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Content not found")
	}
	return err
}

// Save handles POST /api/save. The record is stored as pending and enrichment
// runs after the response.
func (h *Handlers) Save(c *fiber.Ctx) error {
	var req saveRequest
	if err := middleware.BindJSON(c, &req); err != nil {
		return err
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.URL = strings.TrimSpace(req.URL)
	if req.DeviceID == "" || req.URL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "deviceId and url are required")
	}

	ct := models.ContentType(req.ContentType)
	if ct == "" {
		ct = utils.DetectContentType(req.URL)
	}

	now := h.now()
	content := &models.Content{
		ID:               uuid.NewString(),
		DeviceID:         req.DeviceID,
		URL:              req.URL,
		ContentType:      ct,
		Title:            utils.BasicTitle(req.URL, ct),
		Description:      "Processing...",
		AITags:           []string{string(ct)},
		Thumbnail:        utils.PlaceholderThumbnail(req.URL, ct),
		Category:         string(models.CategoryOther),
		Insights:         []models.Insight{},
		ProcessingStatus: models.StatusPending,
		SavedAt:          now,
		UpdatedAt:        now,
	}

	if err := h.store.Create(c.UserContext(), content); err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}

	log := logger.With("api")
	if err := h.enricher.Submit(content); err != nil {
		// stays pending; the sweeper retries it
		log.Warn().Err(err).Str("id", content.ID).Msg("Enrichment not queued")
	}

	log.Info().
		Str("id", content.ID).
		Str("device_id", content.DeviceID).
		Str("content_type", string(ct)).
		Msg("Content saved")

	return c.JSON(fiber.Map{
		"success": true,
		"data":    content,
		"message": "Content saved successfully!",
	})
}

// Reprocess handles POST /api/reprocess/:id
func (h *Handlers) Reprocess(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.enricher.Reprocess(c.UserContext(), id); err != nil {
		if errors.Is(err, pipeline.ErrStopped) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return notFound(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Content queued for reprocessing",
	})
}

// List handles GET /api/content/:deviceId
func (h *Handlers) List(c *fiber.Ctx) error {
	var q listQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}

	items, err := h.store.List(c.UserContext(), c.Params("deviceId"), store.ListOptions{
		ContentType: models.ContentType(q.Type),
		Page:        q.Page,
		Limit:       q.Limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list content: %w", err)
	}

	videos := make([]*models.Content, 0)
	screenshots := make([]*models.Content, 0)
	for _, item := range items {
		switch item.ContentType {
		case models.ContentTypeTikTok:
			videos = append(videos, item)
		case models.ContentTypeScreenshot:
			screenshots = append(screenshots, item)
		}
	}
	recent := items
	if len(recent) > recentCount {
		recent = recent[:recentCount]
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"videos":      videos,
			"screenshots": screenshots,
			"recent":      recent,
		},
		"total": len(items),
	})
}

// Get handles GET /api/content/:deviceId/:id and counts the view
func (h *Handlers) Get(c *fiber.Ctx) error {
	content, err := h.store.View(c.UserContext(), c.Params("deviceId"), c.Params("id"))
	if err != nil {
		return notFound(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": content})
}

// Delete handles DELETE /api/content/:deviceId/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	if err := h.store.Delete(c.UserContext(), c.Params("deviceId"), c.Params("id")); err != nil {
		return notFound(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Content deleted successfully",
	})
}

// Search handles GET /api/search/:deviceId
func (h *Handlers) Search(c *fiber.Ctx) error {
	var q searchQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	if strings.TrimSpace(q.Query) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Search query is required")
	}

	results, err := h.store.Search(c.UserContext(), c.Params("deviceId"), store.SearchOptions{
		Query:       q.Query,
		ContentType: models.ContentType(q.Type),
	})
	if err != nil {
		return fmt.Errorf("failed to search content: %w", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    results,
		"query":   q.Query,
		"total":   len(results),
	})
}

// Status handles GET /api/status/:deviceId
func (h *Handlers) Status(c *fiber.Ctx) error {
	counts, err := h.store.CountByStatus(c.UserContext(), c.Params("deviceId"))
	if err != nil {
		return fmt.Errorf("failed to count content: %w", err)
	}

	data := make(fiber.Map, len(models.Statuses))
	for _, s := range models.Statuses {
		data[string(s)] = counts[s]
	}
	return c.JSON(fiber.Map{"success": true, "data": data})
}

type uploadRequest struct {
	Image string `json:"image" validate:"required"`
}

// UploadImage handles POST /api/upload-image with either a multipart "image"
// field or a JSON body carrying a data URI.
func (h *Handlers) UploadImage(c *fiber.Ctx) error {
	data, declared, err := h.readUpload(c)
	if err != nil {
		return err
	}

	id, err := h.images.Put(c.UserContext(), declared, data)
	switch {
	case errors.Is(err, media.ErrNotImage):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, media.ErrTooLarge):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
	case err != nil:
		return fmt.Errorf("failed to store image: %w", err)
	}

	url := h.resolver.URL(c.BaseURL(), id)
	logger.With("api").Info().Str("image_id", id).Int("bytes", len(data)).Msg("Image uploaded")

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"id": id, "url": url},
	})
}

func (h *Handlers) readUpload(c *fiber.Ctx) ([]byte, string, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, "", fiber.NewError(fiber.StatusBadRequest, "image file is required")
		}
		if h.maxSize > 0 && fh.Size > h.maxSize {
			return nil, "", fiber.NewError(fiber.StatusRequestEntityTooLarge, media.ErrTooLarge.Error())
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read upload: %w", err)
		}
		return data, fh.Header.Get(fiber.HeaderContentType), nil
	}

	var req uploadRequest
	if err := middleware.BindJSON(c, &req); err != nil {
		return nil, "", err
	}
	data, declared, err := utils.DecodeDataURI(req.Image)
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return data, declared, nil
}

// Image handles GET /api/image/:id
func (h *Handlers) Image(c *fiber.Ctx) error {
	img, err := h.images.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Image not found")
		}
		return err
	}

	c.Set(fiber.HeaderContentType, img.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(img.Data)
}

// PipelineStats handles GET /admin/pipeline
func (h *Handlers) PipelineStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": h.enricher.Stats()})
}

// Sweep handles POST /admin/sweep
func (h *Handlers) Sweep(c *fiber.Ctx) error {
	result, err := h.sweeper.RunNow(c.UserContext())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": result})
}
