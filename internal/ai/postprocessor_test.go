package ai

import (
	"strings"
	"testing"

	"github.com/bilgisen/kova/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRawCooking(t *testing.T) {
	raw := ParseRaw(`{
		"title": "Garlic Butter Pasta",
		"category": "recipe",
		"keyInfo": "15 minute weeknight pasta",
		"tags": ["Pasta", "#dinner", "pasta", "Quick"],
		"dish": "Garlic Butter Pasta",
		"ingredients": [{"name": "spaghetti", "amount": "200g"}, "garlic", "butter"],
		"steps": ["Boil pasta", "Melt butter with garlic", "Toss"],
		"time": "15 minutes",
		"servings": 2
	}`)
	p := NewPostProcessor()

	a := p.FromRaw(raw, Analysis{Title: "TikTok Video", Thumbnail: "thumb.jpg", Tags: []string{"tiktok"}})

	assert.Equal(t, "Garlic Butter Pasta", a.Title)
	assert.Equal(t, "15 minute weeknight pasta", a.Description)
	assert.Equal(t, "thumb.jpg", a.Thumbnail)
	assert.Equal(t, "cooking", a.Category)
	assert.Equal(t, []string{"pasta", "dinner", "quick"}, a.Tags)

	sd := a.StructuredData
	assert.Equal(t, models.CategoryCooking, sd.Type)
	require.NotNil(t, sd.Cooking)
	assert.Nil(t, sd.Generic)
	assert.Equal(t, 15, sd.Cooking.TotalMinutes)
	assert.Equal(t, 2, sd.Cooking.Servings)
	require.Len(t, sd.Cooking.Ingredients, 3)
	assert.Equal(t, "🍝", sd.Cooking.Ingredients[0].Icon)
	assert.Equal(t, "200g", sd.Cooking.Ingredients[0].Amount)
	assert.Equal(t, "🧄", sd.Cooking.Ingredients[1].Icon)
	assert.Equal(t, "🧈", sd.Cooking.Ingredients[2].Icon)
	require.Len(t, sd.Cooking.Steps, 3)
	assert.Equal(t, models.Step{Number: 3, Text: "Toss"}, sd.Cooking.Steps[2])

	require.Len(t, a.Insights, 2)
	assert.Equal(t, "Quick & Easy", a.Insights[0].Title)
	assert.Equal(t, "Few Ingredients", a.Insights[1].Title)

	assert.Equal(t, "Garlic Butter Pasta • 15 min • 3 ingredients • Serves 2", a.DisplaySummary)
}

func TestFromRawKeepsBaseForOmittedFields(t *testing.T) {
	raw := ParseRaw(`{"keyInfo": "Something useful"}`)
	base := Analysis{Title: "TikTok Video", Thumbnail: "t.jpg", Tags: []string{"tiktok", "video"}}

	a := NewPostProcessor().FromRaw(raw, base)

	assert.Equal(t, "TikTok Video", a.Title)
	assert.Equal(t, []string{"tiktok", "video"}, a.Tags)
	assert.Equal(t, "other", a.Category)
	require.NotNil(t, a.StructuredData.Generic)
	assert.Equal(t, "Something useful", a.StructuredData.Generic.KeyInfo)
	assert.Equal(t, "Something useful", a.DisplaySummary)
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in      string
		variant models.Category
		label   string
	}{
		{"", models.CategoryOther, "other"},
		{"DIY", models.CategoryTutorial, "tutorial"},
		{"product", models.CategoryReview, "review"},
		{"food", models.CategoryCooking, "cooking"},
		{"flight", models.CategoryTravel, "travel"},
		{"hotel", models.CategoryTravel, "travel"},
		{"workout", models.CategoryFitness, "fitness"},
		{"receipt", models.CategoryOther, "receipt"},
	}
	for _, tt := range tests {
		variant, label := NormalizeCategory(tt.in)
		assert.Equal(t, tt.variant, variant, tt.in)
		assert.Equal(t, tt.label, label, tt.in)
	}
}

func TestReviewRatingClampedAndInsights(t *testing.T) {
	raw := ParseRaw(`{
		"title": "Headphones review",
		"category": "review",
		"product": "Sonic X",
		"price": "$199",
		"rating": 9,
		"pros": ["bass"],
		"cons": ["weight", "case"]
	}`)

	a := NewPostProcessor().FromRaw(raw, Analysis{})

	require.NotNil(t, a.StructuredData.Review)
	assert.Equal(t, 5.0, a.StructuredData.Review.Rating)
	require.Len(t, a.Insights, 3)
	assert.Equal(t, "Highly Rated", a.Insights[0].Title)
	assert.Equal(t, "Price", a.Insights[1].Title)
	assert.Equal(t, "Think Twice", a.Insights[2].Title)
	assert.Equal(t, "Sonic X • $199 • 5/5", a.DisplaySummary)
}

func TestInsightsCappedAtThree(t *testing.T) {
	sd := models.StructuredData{
		Type: models.CategoryCooking,
		Cooking: &models.Recipe{
			TotalMinutes: 10,
			Ingredients:  []models.Ingredient{{Name: "egg"}},
			Servings:     6,
			Cost:         "$5",
		},
	}
	assert.Len(t, Insights(sd), 3)
}

func TestFinalizeCleansAndNeverLeavesTagsEmpty(t *testing.T) {
	a := &Analysis{
		Title:    "  Very\tlong \n title " + strings.Repeat("x", 200),
		Category: "Travel",
	}

	NewPostProcessor().Finalize(a)

	assert.LessOrEqual(t, len([]rune(a.Title)), 80)
	assert.True(t, strings.HasPrefix(a.Title, "Very long title"))
	assert.True(t, strings.HasSuffix(a.Title, "..."))
	assert.Equal(t, "travel", a.Category)
	assert.Equal(t, []string{"travel"}, a.Tags)
	assert.Equal(t, models.CategoryTravel, a.StructuredData.Type)
	assert.NotNil(t, a.StructuredData.Travel)
}
