package utils

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/bilgisen/kova/internal/models"
)

var (
	imageExtRegex   = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|heic)$`)
	tiktokIDRegex   = regexp.MustCompile(`/video/(\d+)`)
	tiktokUserRegex = regexp.MustCompile(`@([^/?#]+)`)
)

var placeholderThumbnails = map[models.ContentType]string{
	models.ContentTypeTikTok: "https://via.placeholder.com/300x200/007AFF/FFFFFF?text=📱+Video",
	models.ContentTypeVideo:  "https://via.placeholder.com/300x200/007AFF/FFFFFF?text=📱+Video",
	models.ContentTypeImage:  "https://via.placeholder.com/300x200/28A745/FFFFFF?text=📸+Image",
	models.ContentTypeOther:  "https://via.placeholder.com/300x200/6C757D/FFFFFF?text=🔗+Link",
}

// Host returns the lowercased hostname without a leading "www.", or "" if raw is not a URL
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Domain is Host with "unknown" for unparseable input
func Domain(raw string) string {
	if h := Host(raw); h != "" {
		return h
	}
	return "unknown"
}

func hostIs(host string, domains ...string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsDataURI reports whether raw is an inline base64 payload
func IsDataURI(raw string) bool {
	return strings.HasPrefix(raw, "data:")
}

func isImagePath(raw string) bool {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return imageExtRegex.MatchString(u.Path)
	}
	return imageExtRegex.MatchString(raw)
}

// DetectContentType guesses the content type of a shared URL
func DetectContentType(raw string) models.ContentType {
	if IsDataURI(raw) {
		if strings.HasPrefix(raw, "data:image/") {
			return models.ContentTypeImage
		}
		return models.ContentTypeOther
	}

	host := Host(raw)
	switch {
	case host == "":
		return models.ContentTypeOther
	case hostIs(host, "tiktok.com"):
		return models.ContentTypeTikTok
	case hostIs(host, "youtube.com", "youtu.be", "instagram.com", "vimeo.com"):
		return models.ContentTypeVideo
	case isImagePath(raw):
		return models.ContentTypeImage
	}
	return models.ContentTypeOther
}

// BasicTitle derives a placeholder title without any network access
func BasicTitle(raw string, contentType models.ContentType) string {
	switch contentType {
	case models.ContentTypeTikTok:
		return "TikTok Video"
	case models.ContentTypeScreenshot:
		return "Screenshot"
	}

	if IsDataURI(raw) {
		return "Image"
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "Saved Content"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	switch {
	case hostIs(host, "tiktok.com"):
		return "TikTok Video"
	case isImagePath(raw):
		if name := path.Base(u.Path); name != "" && name != "/" && name != "." {
			return name
		}
		return "Image"
	case hostIs(host, "youtube.com", "youtu.be"):
		return "YouTube Video"
	case hostIs(host, "instagram.com"):
		return "Instagram Post"
	case hostIs(host, "twitter.com", "x.com"):
		return "Twitter Post"
	}
	return host + " Content"
}

// PlaceholderThumbnail returns the thumbnail shown until enrichment finishes.
// Image types use the image itself.
func PlaceholderThumbnail(raw string, contentType models.ContentType) string {
	if contentType.IsImage() {
		return raw
	}
	if thumb, ok := placeholderThumbnails[contentType]; ok {
		return thumb
	}
	return placeholderThumbnails[models.ContentTypeOther]
}

// TikTokVideoID extracts the numeric video id, or ""
func TikTokVideoID(raw string) string {
	if m := tiktokIDRegex.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// TikTokCreator extracts the @handle (without "@"), or ""
func TikTokCreator(raw string) string {
	if m := tiktokUserRegex.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// TikTokThumbnail builds the CDN thumbnail guess for a video URL
func TikTokThumbnail(raw string) string {
	id := TikTokVideoID(raw)
	if id == "" {
		return ""
	}
	return "https://p16-sign-va.tiktokcdn.com/obj/tos-maliva-p-0068/" + id + ".jpeg"
}

// DecodeDataURI decodes "data:<mime>[;base64],<payload>" and returns the
// payload with its declared MIME type
func DecodeDataURI(ref string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI")
	}

	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	if !isBase64 {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("malformed data URI: %w", err)
		}
		return []byte(unescaped), mime, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", fmt.Errorf("decode data URI: %w", err)
		}
	}
	return data, mime, nil
}
