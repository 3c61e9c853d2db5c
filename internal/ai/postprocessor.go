package ai

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bilgisen/kova/internal/models"
)

const (
	maxInsights      = 3
	summarySeparator = " • "
)

var controlCharsRegex = regexp.MustCompile(`[\x00-\x1F\x7F]`)

// Analysis is the enrichment result for one saved item
type Analysis struct {
	Title          string
	Description    string
	KeyInfo        string
	Tags           []string
	Thumbnail      string
	Category       string
	Details        []string
	StructuredData models.StructuredData
	Insights       []models.Insight
	DisplaySummary string

	// Source names the strategy that produced the result
	Source string
}

var categoryAliases = map[string]models.Category{
	"cooking":  models.CategoryCooking,
	"recipe":   models.CategoryCooking,
	"food":     models.CategoryCooking,
	"travel":   models.CategoryTravel,
	"flight":   models.CategoryTravel,
	"hotel":    models.CategoryTravel,
	"tutorial": models.CategoryTutorial,
	"diy":      models.CategoryTutorial,
	"review":   models.CategoryReview,
	"product":  models.CategoryReview,
	"fitness":  models.CategoryFitness,
	"workout":  models.CategoryFitness,
	"exercise": models.CategoryFitness,
}

var ingredientIcons = newKeywordIndex([]keywordGroup{
	{Name: "🥚", Words: []string{"egg"}},
	{Name: "🧀", Words: []string{"cheese", "parmesan", "mozzarella", "feta"}},
	{Name: "🧈", Words: []string{"butter"}},
	{Name: "🥛", Words: []string{"milk", "cream", "yogurt"}},
	{Name: "🍗", Words: []string{"chicken", "turkey"}},
	{Name: "🥩", Words: []string{"beef", "steak", "pork", "lamb", "meat"}},
	{Name: "🐟", Words: []string{"fish", "salmon", "tuna", "shrimp", "prawn"}},
	{Name: "🍝", Words: []string{"pasta", "spaghetti", "noodle"}},
	{Name: "🍚", Words: []string{"rice"}},
	{Name: "🍞", Words: []string{"bread", "flour", "dough"}},
	{Name: "🍅", Words: []string{"tomato"}},
	{Name: "🧄", Words: []string{"garlic"}},
	{Name: "🧅", Words: []string{"onion", "shallot"}},
	{Name: "🥔", Words: []string{"potato"}},
	{Name: "🥕", Words: []string{"carrot"}},
	{Name: "🌶️", Words: []string{"chili", "chilli", "pepper", "paprika"}},
	{Name: "🍋", Words: []string{"lemon", "lime"}},
	{Name: "🫒", Words: []string{"olive", "oil"}},
	{Name: "🧂", Words: []string{"salt"}},
	{Name: "🍯", Words: []string{"honey", "sugar", "syrup"}},
	{Name: "🍫", Words: []string{"chocolate", "cocoa"}},
	{Name: "🌿", Words: []string{"basil", "parsley", "cilantro", "herb", "mint"}},
})

// PostProcessor turns raw model output into a clean Analysis
type PostProcessor struct {
	maxTitleLength       int
	maxDescriptionLength int
	maxSummaryLength     int
	maxTags              int
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{
		maxTitleLength:       80,
		maxDescriptionLength: 300,
		maxSummaryLength:     140,
		maxTags:              8,
	}
}

// FromRaw merges a parsed model reply over base. Fields the model omitted
// keep the values from base.
func (p *PostProcessor) FromRaw(raw rawAnalysis, base Analysis) *Analysis {
	a := base
	a.Tags = append([]string(nil), base.Tags...)
	a.Details = append([]string(nil), base.Details...)

	if raw.Title != "" {
		a.Title = string(raw.Title)
	}
	a.KeyInfo = firstNonEmpty(string(raw.KeyInfo), base.KeyInfo)
	a.Description = firstNonEmpty(string(raw.KeyInfo), string(raw.Description), string(raw.Summary), base.Description)
	if len(raw.Tags) > 0 {
		a.Tags = append([]string(nil), raw.Tags...)
	}
	if len(raw.Details) > 0 {
		a.Details = append([]string(nil), raw.Details...)
	}
	if raw.Category != "" {
		a.Category = string(raw.Category)
	}

	variant, label := NormalizeCategory(a.Category)
	a.Category = label
	a.StructuredData = p.structure(variant, raw, &a)

	p.Finalize(&a)
	return &a
}

// Finalize cleans text fields and fills derived fields. It is idempotent.
func (p *PostProcessor) Finalize(a *Analysis) {
	a.Title = truncate(p.cleanText(a.Title), p.maxTitleLength)
	a.Description = truncate(p.cleanText(a.Description), p.maxDescriptionLength)
	a.KeyInfo = p.cleanText(a.KeyInfo)
	a.Details = p.cleanList(a.Details)

	variant, label := NormalizeCategory(a.Category)
	a.Category = label

	a.Tags = p.normalizeTags(a.Tags)
	if len(a.Tags) == 0 {
		a.Tags = []string{label}
	}

	if a.StructuredData.Empty() {
		a.StructuredData = p.structure(variant, rawAnalysis{}, a)
	}
	if a.Insights == nil {
		a.Insights = Insights(a.StructuredData)
	}
	if a.DisplaySummary == "" {
		a.DisplaySummary = truncate(DisplaySummary(a.StructuredData, a.Title), p.maxSummaryLength)
	}
}

// NormalizeCategory maps a free-form category to a structured variant and the
// label stored on the record. Unknown categories keep their label and use the
// generic variant.
func NormalizeCategory(raw string) (models.Category, string) {
	label := strings.ToLower(strings.TrimSpace(raw))
	if label == "" {
		return models.CategoryOther, string(models.CategoryOther)
	}
	if c, ok := categoryAliases[label]; ok {
		return c, string(c)
	}
	return models.CategoryOther, label
}

func (p *PostProcessor) structure(variant models.Category, raw rawAnalysis, a *Analysis) models.StructuredData {
	sd := models.StructuredData{Type: variant}

	switch variant {
	case models.CategoryCooking:
		r := &models.Recipe{
			Dish:         firstNonEmpty(string(raw.Dish), a.Title),
			Ingredients:  make([]models.Ingredient, 0, len(raw.Ingredients)),
			Steps:        numberSteps(raw.Steps),
			TotalMinutes: parseMinutes(string(raw.Time)),
			Servings:     int(raw.Servings),
			Cost:         string(raw.Cost),
			Tips:         p.cleanList(raw.Tips),
		}
		for _, ing := range raw.Ingredients {
			if ing.Name == "" {
				continue
			}
			r.Ingredients = append(r.Ingredients, models.Ingredient{
				Name:   ing.Name,
				Amount: ing.Amount,
				Icon:   IngredientIcon(ing.Name),
			})
		}
		sd.Cooking = r

	case models.CategoryTravel:
		sd.Travel = &models.TravelPlan{
			Destination: string(raw.Destination),
			Places:      nonNil(p.cleanList(raw.Places)),
			Budget:      firstNonEmpty(string(raw.Budget), string(raw.Price)),
			Dates:       string(raw.Dates),
			Tips:        p.cleanList(raw.Tips),
		}

	case models.CategoryTutorial:
		sd.Tutorial = &models.Tutorial{
			Project:    firstNonEmpty(string(raw.Project), a.Title),
			Materials:  nonNil(p.cleanList(raw.Materials)),
			Steps:      numberSteps(raw.Steps),
			Duration:   firstNonEmpty(string(raw.Duration), string(raw.Time)),
			Difficulty: strings.ToLower(string(raw.Difficulty)),
		}

	case models.CategoryReview:
		rating := float64(raw.Rating)
		if rating < 0 {
			rating = 0
		}
		if rating > 5 {
			rating = 5
		}
		sd.Review = &models.Review{
			Product:    firstNonEmpty(string(raw.Product), a.Title),
			Price:      string(raw.Price),
			WhereToBuy: string(raw.WhereToBuy),
			Pros:       nonNil(p.cleanList(raw.Pros)),
			Cons:       nonNil(p.cleanList(raw.Cons)),
			Rating:     rating,
			Verdict:    string(raw.Verdict),
		}

	case models.CategoryFitness:
		w := &models.Workout{
			Name:      firstNonEmpty(string(raw.Workout), a.Title),
			Exercises: make([]models.Exercise, 0, len(raw.Exercises)),
			Minutes:   parseMinutes(firstNonEmpty(string(raw.Time), string(raw.Duration))),
			Level:     strings.ToLower(string(raw.Level)),
			Equipment: p.cleanList(raw.Equipment),
		}
		for _, ex := range raw.Exercises {
			if ex.Name != "" {
				w.Exercises = append(w.Exercises, models.Exercise{Name: ex.Name, Sets: ex.Sets, Reps: ex.Reps})
			}
		}
		sd.Fitness = w

	default:
		sd.Generic = &models.Generic{
			KeyInfo: a.KeyInfo,
			Details: nonNil(append([]string(nil), a.Details...)),
		}
	}

	return sd
}

// IngredientIcon picks an emoji for an ingredient name
func IngredientIcon(name string) string {
	if icon := ingredientIcons.First(name); icon != "" {
		return icon
	}
	return "🥄"
}

// Insights derives up to three tips from structured data
func Insights(sd models.StructuredData) []models.Insight {
	var out []models.Insight
	add := func(icon, title, text string) {
		if len(out) < maxInsights {
			out = append(out, models.Insight{Icon: icon, Title: title, Text: text})
		}
	}

	switch {
	case sd.Cooking != nil:
		r := sd.Cooking
		if r.TotalMinutes > 0 && r.TotalMinutes <= 20 {
			add("⚡", "Quick & Easy", fmt.Sprintf("Ready in %d minutes", r.TotalMinutes))
		}
		if n := len(r.Ingredients); n > 0 && n <= 5 {
			add("🛒", "Few Ingredients", fmt.Sprintf("Only %d ingredients needed", n))
		}
		if r.Servings >= 4 {
			add("👨‍👩‍👧", "Feeds a Crowd", fmt.Sprintf("Serves %d", r.Servings))
		}
		if r.Cost != "" {
			add("💰", "Budget", "Estimated cost: "+r.Cost)
		}

	case sd.Travel != nil:
		t := sd.Travel
		if t.Budget != "" {
			add("💰", "Budget", t.Budget)
		}
		if t.Dates != "" {
			add("📅", "When to Go", t.Dates)
		}
		if n := len(t.Places); n >= 3 {
			add("📍", "Packed Itinerary", fmt.Sprintf("%d places to visit", n))
		}

	case sd.Tutorial != nil:
		t := sd.Tutorial
		if strings.Contains(t.Difficulty, "easy") || strings.Contains(t.Difficulty, "beginner") {
			add("👍", "Beginner Friendly", "No experience needed")
		}
		if t.Duration != "" {
			add("⏱️", "Time Needed", t.Duration)
		}
		if n := len(t.Materials); n > 0 {
			add("🧰", "Materials", fmt.Sprintf("%d materials needed", n))
		}

	case sd.Review != nil:
		r := sd.Review
		if r.Rating >= 4 {
			add("⭐", "Highly Rated", fmt.Sprintf("Rated %s/5", formatRating(r.Rating)))
		} else if r.Rating > 0 && r.Rating < 3 {
			add("⚠️", "Mixed Reviews", fmt.Sprintf("Rated %s/5", formatRating(r.Rating)))
		}
		if r.Price != "" {
			add("🏷️", "Price", r.Price)
		}
		if len(r.Cons) > len(r.Pros) {
			add("🤔", "Think Twice", "More cons than pros mentioned")
		}

	case sd.Fitness != nil:
		w := sd.Fitness
		if w.Minutes > 0 && w.Minutes <= 20 {
			add("⚡", "Quick Workout", fmt.Sprintf("Only %d minutes", w.Minutes))
		}
		if len(w.Equipment) == 0 && len(w.Exercises) > 0 {
			add("🏠", "No Equipment", "Can be done at home")
		}
		if w.Level != "" {
			add("📈", "Level", w.Level)
		}
	}

	return out
}

// DisplaySummary joins the salient structured fields for list views
func DisplaySummary(sd models.StructuredData, title string) string {
	var parts []string
	push := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	switch {
	case sd.Cooking != nil:
		r := sd.Cooking
		push(r.Dish)
		if r.TotalMinutes > 0 {
			push(fmt.Sprintf("%d min", r.TotalMinutes))
		}
		if n := len(r.Ingredients); n > 0 {
			push(fmt.Sprintf("%d ingredients", n))
		}
		if r.Servings > 0 {
			push(fmt.Sprintf("Serves %d", r.Servings))
		}
	case sd.Travel != nil:
		t := sd.Travel
		push(t.Destination)
		push(t.Budget)
		push(t.Dates)
		if n := len(t.Places); n > 0 {
			push(fmt.Sprintf("%d places", n))
		}
	case sd.Tutorial != nil:
		t := sd.Tutorial
		push(t.Project)
		push(t.Duration)
		push(t.Difficulty)
	case sd.Review != nil:
		r := sd.Review
		push(r.Product)
		push(r.Price)
		if r.Rating > 0 {
			push(formatRating(r.Rating) + "/5")
		}
	case sd.Fitness != nil:
		w := sd.Fitness
		push(w.Name)
		if w.Minutes > 0 {
			push(fmt.Sprintf("%d min", w.Minutes))
		}
		if n := len(w.Exercises); n > 0 {
			push(fmt.Sprintf("%d exercises", n))
		}
		push(w.Level)
	case sd.Generic != nil:
		push(sd.Generic.KeyInfo)
	}

	if len(parts) == 0 {
		return strings.TrimSpace(title)
	}
	return strings.Join(parts, summarySeparator)
}

// cleanText removes unwanted characters and normalizes whitespace
func (p *PostProcessor) cleanText(s string) string {
	s = controlCharsRegex.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func (p *PostProcessor) cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if item = p.cleanText(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// normalizeTags lowercases, strips leading '#' and removes duplicates
func (p *PostProcessor) normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(p.cleanText(strings.TrimLeft(strings.TrimSpace(tag), "#")))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == p.maxTags {
			break
		}
	}
	return out
}

func numberSteps(steps []string) []models.Step {
	out := make([]models.Step, 0, len(steps))
	for _, s := range steps {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, models.Step{Number: len(out) + 1, Text: s})
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-3])) + "..."
}

func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
