package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/kova/internal/logger"
	"github.com/bilgisen/kova/internal/models"
	"github.com/bilgisen/kova/internal/utils"
)

// MetadataSource looks up oEmbed metadata for a URL
type MetadataSource interface {
	Fetch(ctx context.Context, url string) (*Metadata, error)
}

// Transcriber converts the audio of a video URL to text
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

// ImageSource loads the bitmap behind an image reference
type ImageSource interface {
	Load(ctx context.Context, ref string) (*Image, error)
}

type Options struct {
	Model         Model
	Metadata      MetadataSource
	Transcripts   Transcriber
	Images        ImageSource
	VisionTimeout time.Duration
}

// Analyzer produces a best-effort Analysis for a saved item. Every external
// dependency is optional; missing ones skip their tier.
type Analyzer struct {
	model         Model
	metadata      MetadataSource
	transcripts   Transcriber
	images        ImageSource
	visionTimeout time.Duration
	post          *PostProcessor
}

func NewAnalyzer(opts Options) *Analyzer {
	if opts.VisionTimeout <= 0 {
		opts.VisionTimeout = 30 * time.Second
	}
	return &Analyzer{
		model:         opts.Model,
		metadata:      opts.Metadata,
		transcripts:   opts.Transcripts,
		images:        opts.Images,
		visionTimeout: opts.VisionTimeout,
		post:          NewPostProcessor(),
	}
}

// Analyze dispatches by content type. It fails only when ctx is done before
// a result is produced.
func (a *Analyzer) Analyze(ctx context.Context, url string, contentType models.ContentType) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logger.With("analyzer").With().
		Str("url", url).
		Str("content_type", string(contentType)).
		Logger()

	var strategies []Strategy
	switch {
	case contentType == models.ContentTypeTikTok:
		strategies = a.tiktokStrategies(ctx, url)
	case contentType.IsImage():
		strategies = a.imageStrategies(url, contentType)
	default:
		strategies = a.genericStrategies(url, contentType)
	}

	result, err := FirstSuccess(ctx, log, strategies...)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", contentType, err)
	}

	if result.Thumbnail == "" {
		result.Thumbnail = utils.PlaceholderThumbnail(url, contentType)
	}
	a.post.Finalize(result)

	log.Debug().Str("source", result.Source).Str("category", result.Category).Msg("Analysis complete")
	return result, nil
}

func (a *Analyzer) tiktokStrategies(ctx context.Context, url string) []Strategy {
	log := logger.With("analyzer")

	var meta *Metadata
	if a.metadata != nil {
		m, err := a.metadata.Fetch(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("TikTok metadata fetch failed")
		}
		meta = m
	}

	var strategies []Strategy
	if a.model != nil {
		strategies = append(strategies, Strategy{
			Name: "model",
			Run: func(ctx context.Context) (*Analysis, error) {
				transcript := a.transcript(ctx, url)
				base := Analysis{
					Title:     "TikTok Video",
					Thumbnail: utils.TikTokThumbnail(url),
					Tags:      []string{"tiktok", "video"},
				}
				if meta != nil {
					base.Title = firstNonEmpty(meta.Title, base.Title)
					base.Thumbnail = firstNonEmpty(meta.Thumbnail, base.Thumbnail)
				}
				return a.generate(ctx, BuildTikTokPrompt(url, meta, transcript), base)
			},
		})
	}

	return append(strategies,
		Static("metadata", func() *Analysis { return tiktokFromMetadata(url, meta) }),
		Static("creator", func() *Analysis { return tiktokFromCreator(url) }),
		Static("fallback", func() *Analysis { return tiktokGeneric(url) }),
	)
}

// transcript is best effort; failures leave the prompt to metadata or URL
func (a *Analyzer) transcript(ctx context.Context, url string) string {
	if a.transcripts == nil || utils.TikTokVideoID(url) == "" {
		return ""
	}
	text, err := a.transcripts.Transcribe(ctx, url)
	if err != nil {
		logger.With("analyzer").Warn().Err(err).Str("url", url).Msg("Transcript fetch failed")
		return ""
	}
	return text
}

func (a *Analyzer) imageStrategies(ref string, contentType models.ContentType) []Strategy {
	var strategies []Strategy
	if a.model != nil && a.images != nil {
		strategies = append(strategies, Strategy{
			Name: "vision",
			Run: func(ctx context.Context) (*Analysis, error) {
				img, err := a.images.Load(ctx, ref)
				if err != nil {
					return nil, err
				}

				ctx, cancel := context.WithTimeout(ctx, a.visionTimeout)
				defer cancel()

				reply, err := a.model.GenerateWithImage(ctx, PromptTemplates.Screenshot, img)
				if err != nil {
					return nil, err
				}
				base := *screenshotFallback(ref, contentType)
				base.Source = ""
				return a.fromReply(reply, base), nil
			},
		})
	}

	return append(strategies,
		Static("fallback", func() *Analysis { return screenshotFallback(ref, contentType) }),
	)
}

func (a *Analyzer) genericStrategies(url string, contentType models.ContentType) []Strategy {
	var strategies []Strategy
	if a.model != nil {
		strategies = append(strategies, Strategy{
			Name: "model",
			Run: func(ctx context.Context) (*Analysis, error) {
				base := Analysis{
					Title:     utils.BasicTitle(url, contentType),
					Thumbnail: utils.PlaceholderThumbnail(url, contentType),
					Tags:      []string{"link"},
				}
				return a.generate(ctx, BuildGenericPrompt(url, utils.Domain(url)), base)
			},
		})
	}

	return append(strategies,
		Static("fallback", func() *Analysis { return genericFallback(url, contentType) }),
	)
}

func (a *Analyzer) generate(ctx context.Context, prompt string, base Analysis) (*Analysis, error) {
	reply, err := a.model.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return a.fromReply(reply, base), nil
}

// fromReply returns nil when the reply carries nothing usable
func (a *Analyzer) fromReply(reply string, base Analysis) *Analysis {
	raw := ParseRaw(reply)
	if raw.Empty() {
		return nil
	}
	return a.post.FromRaw(raw, base)
}
