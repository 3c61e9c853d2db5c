package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bilgisen/kova/internal/models"
	"github.com/bilgisen/kova/internal/utils"
)

var nonAlphaNumRegex = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// smartTagGroups tags a title by topic
var smartTagGroups = newKeywordIndex([]keywordGroup{
	{Name: "cooking", Words: []string{"recipe", "food", "cook", "kitchen", "chef", "meal", "ingredient"}},
	{Name: "fitness", Words: []string{"workout", "exercise", "gym", "health", "fitness", "training"}},
	{Name: "tutorial", Words: []string{"how", "diy", "tutorial", "guide", "learn", "tip", "hack"}},
	{Name: "comedy", Words: []string{"funny", "laugh", "joke", "humor", "comedy", "meme"}},
	{Name: "dance", Words: []string{"dance", "dancing", "moves", "choreography", "performance"}},
	{Name: "music", Words: []string{"music", "song", "singing", "cover", "performance", "audio"}},
	{Name: "viral", Words: []string{"viral", "trending", "popular", "hot", "fire"}},
})

type creatorProfile struct {
	ContentType string
	Description string
	Category    string
	Tags        []string
}

var creatorProfiles = map[string]creatorProfile{
	"chef": {
		ContentType: "Cooking Tutorial",
		Description: "Culinary expertise and cooking tips.",
		Category:    string(models.CategoryCooking),
		Tags:        []string{"cooking", "recipe", "chef", "food"},
	},
	"dance": {
		ContentType: "Dance Performance",
		Description: "Creative dance moves and choreography.",
		Tags:        []string{"dance", "performance", "choreography", "music"},
	},
	"beauty": {
		ContentType: "Beauty & Style",
		Description: "Beauty tips and style inspiration.",
		Tags:        []string{"beauty", "makeup", "style", "fashion"},
	},
	"fitness": {
		ContentType: "Fitness Content",
		Description: "Workout tips and fitness motivation.",
		Category:    string(models.CategoryFitness),
		Tags:        []string{"fitness", "workout", "health", "motivation"},
	},
	"comedy": {
		ContentType: "Comedy Content",
		Description: "Entertaining and humorous content.",
		Tags:        []string{"comedy", "funny", "entertainment", "humor"},
	},
}

var defaultCreatorProfile = creatorProfile{
	ContentType: "Creative Content",
	Description: "Original creative content and entertainment.",
	Tags:        []string{"creative", "entertainment", "original"},
}

// creatorGroups is checked in declaration order, so the first group wins
var creatorGroups = newKeywordIndex([]keywordGroup{
	{Name: "chef", Words: []string{"chef", "cook", "recipe", "gordon"}},
	{Name: "dance", Words: []string{"dance", "choreo", "moves"}},
	{Name: "beauty", Words: []string{"beauty", "makeup", "style"}},
	{Name: "fitness", Words: []string{"fit", "gym", "workout"}},
	{Name: "comedy", Words: []string{"comedy", "funny", "meme"}},
})

// SmartTags returns the content type plus every topic found in title
func SmartTags(title string, contentType models.ContentType) []string {
	tags := []string{string(contentType)}
	for _, topic := range smartTagGroups.Match(title) {
		if topic != string(contentType) {
			tags = append(tags, topic)
		}
	}
	return tags
}

// FormatCreatorName turns a handle like "chef_gordon.r" into "Chef Gordon R"
func FormatCreatorName(handle string) string {
	words := strings.Fields(nonAlphaNumRegex.ReplaceAllString(handle, " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func creatorProfileFor(handle string) creatorProfile {
	if p, ok := creatorProfiles[creatorGroups.First(handle)]; ok {
		return p
	}
	return defaultCreatorProfile
}

func smartTitle(title, creator string) string {
	lower := strings.ToLower(title)
	if strings.Contains(lower, "tiktok video") || strings.Contains(lower, "fun times") {
		if creator != "" {
			return creator + " Content Creation"
		}
		return "Creative Social Media Content"
	}
	if len(strings.Fields(title)) <= 2 && creator != "" {
		return title + " Performance"
	}
	return title
}

func smartDescription(title, creator string) string {
	if creator != "" {
		return fmt.Sprintf("%s by %s. Engaging content worth saving for later reference.", title, creator)
	}
	return title + ". Engaging content worth saving for later reference."
}

// tiktokFromMetadata builds a result from the oEmbed title alone
func tiktokFromMetadata(url string, meta *Metadata) *Analysis {
	if meta == nil || meta.Title == "" {
		return nil
	}

	creator := utils.TikTokCreator(url)
	title := smartTitle(meta.Title, creator)
	tags := SmartTags(meta.Title, models.ContentTypeTikTok)

	category := ""
	for _, t := range tags {
		if v, _ := NormalizeCategory(t); v != models.CategoryOther {
			category = t
			break
		}
	}

	return &Analysis{
		Title:       title,
		Description: smartDescription(title, creator),
		Tags:        tags,
		Thumbnail:   firstNonEmpty(meta.Thumbnail, utils.TikTokThumbnail(url)),
		Category:    category,
		Source:      "metadata",
	}
}

// tiktokFromCreator guesses the topic from the creator handle in the URL
func tiktokFromCreator(url string) *Analysis {
	handle := utils.TikTokCreator(url)
	if handle == "" {
		return nil
	}

	profile := creatorProfileFor(handle)
	name := FormatCreatorName(handle)

	return &Analysis{
		Title: fmt.Sprintf("%s %s", name, profile.ContentType),
		Description: fmt.Sprintf("%s Check out this %s from %s!",
			profile.Description, strings.ToLower(profile.ContentType), name),
		Tags:      append(append([]string(nil), profile.Tags...), "tiktok", "video"),
		Thumbnail: utils.TikTokThumbnail(url),
		Category:  profile.Category,
		Source:    "creator",
	}
}

func tiktokGeneric(url string) *Analysis {
	return &Analysis{
		Title:       "Trending Social Media Content",
		Description: "Viral content from TikTok worth checking out",
		Tags:        []string{"tiktok", "viral", "trending", "social-media"},
		Thumbnail:   utils.TikTokThumbnail(url),
		Source:      "fallback",
	}
}

func screenshotFallback(ref string, contentType models.ContentType) *Analysis {
	a := &Analysis{
		Title:       "Screenshot",
		Description: "Saved screenshot image",
		Tags:        []string{"screenshot", "image", "saved"},
		Thumbnail:   ref,
		Source:      "fallback",
	}
	if contentType == models.ContentTypeImage {
		a.Title = utils.BasicTitle(ref, contentType)
		a.Description = "Saved image"
		a.Tags = []string{"image", "saved"}
	}
	return a
}

func genericFallback(url string, contentType models.ContentType) *Analysis {
	domain := utils.Domain(url)
	return &Analysis{
		Title:       "Content from " + domain,
		Description: "Saved web content",
		Tags:        []string{"link", "web", strings.ToLower(domain)},
		Thumbnail:   utils.PlaceholderThumbnail(url, contentType),
		Source:      "fallback",
	}
}
