package models

import "time"

// ContentType is the coarse kind of a saved item
type ContentType string

const (
	ContentTypeTikTok     ContentType = "tiktok"
	ContentTypeScreenshot ContentType = "screenshot"
	ContentTypeVideo      ContentType = "video"
	ContentTypeImage      ContentType = "image"
	ContentTypeOther      ContentType = "other"
)

// ContentTypes lists every valid content type
var ContentTypes = []ContentType{
	ContentTypeTikTok,
	ContentTypeScreenshot,
	ContentTypeVideo,
	ContentTypeImage,
	ContentTypeOther,
}

// Valid reports whether t is one of the known content types
func (t ContentType) Valid() bool {
	for _, ct := range ContentTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// IsImage reports whether the content is a bitmap the vision model can read
func (t ContentType) IsImage() bool {
	return t == ContentTypeScreenshot || t == ContentTypeImage
}

// ProcessingStatus is the enrichment state of a record
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Statuses lists every processing status in lifecycle order
var Statuses = []ProcessingStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// Valid reports whether s is one of the four lifecycle states
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends an enrichment attempt
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Insight is a short advisory tip derived from structured data
type Insight struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Content is a saved item owned by a device
type Content struct {
	ID          string      `json:"id"`
	DeviceID    string      `json:"deviceId"`
	URL         string      `json:"url"`
	ContentType ContentType `json:"contentType"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	AITags      []string `json:"aiTags"`
	Thumbnail   string   `json:"thumbnail"`

	Category       string         `json:"category"`
	StructuredData StructuredData `json:"structuredData"`
	Insights       []Insight      `json:"insights"`
	DisplaySummary string         `json:"displaySummary"`

	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	ProcessedAt      *time.Time       `json:"processedAt,omitempty"`
	ErrorMessage     string           `json:"errorMessage,omitempty"`

	// Generation is bumped whenever the record is re-admitted to the pipeline.
	// Terminal writes only apply when the worker holds the current generation.
	Generation int64 `json:"generation"`

	ViewCount  int       `json:"viewCount"`
	IsFavorite bool      `json:"isFavorite"`
	SavedAt    time.Time `json:"savedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without touching shared state
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	out := *c
	out.AITags = cloneSlice(c.AITags)
	out.Insights = cloneSlice(c.Insights)
	out.StructuredData = c.StructuredData.Clone()
	if c.ProcessedAt != nil {
		t := *c.ProcessedAt
		out.ProcessedAt = &t
	}
	return &out
}

// Owned reports whether the record belongs to deviceID
func (c *Content) Owned(deviceID string) bool {
	return c != nil && c.DeviceID == deviceID
}

// cloneSlice copies s, keeping nil and empty slices distinct so JSON output
// ("null" vs "[]") survives a copy.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
