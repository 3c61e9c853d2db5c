package ai

import (
	"fmt"
	"strings"
)

const schemaInstructions = `Return a single JSON object with these fields:
- title (string, descriptive, under 80 characters)
- category (one of: cooking, travel, tutorial, review, fitness, other)
- keyInfo (string, the most important information)
- details (array of strings)
- tags (array of 3-6 lowercase searchable keywords)

Add the fields that match the category:
- cooking: dish, ingredients (array of {name, amount}), steps (array of strings), time, servings, cost, tips
- travel: destination, places (array), budget, dates, tips
- tutorial: project, materials (array), steps (array), duration, difficulty
- review: product, price, whereToBuy, pros (array), cons (array), rating (0-5), verdict
- fitness: workout, exercises (array of {name, sets, reps}), time, level, equipment (array)

Respond with JSON only.`

// PromptTemplates contains the prompt templates for each analysis path
var PromptTemplates = struct {
	TikTokTranscript string
	TikTokMetadata   string
	TikTokURL        string
	Screenshot       string
	Generic          string
}{
	TikTokTranscript: `Extract USEFUL INFORMATION from this TikTok video transcript so the user does not need to watch the video again.

Title: "%s"
Author: %s
Transcript: "%s"

For cooking videos extract the recipe, ingredients, time, cost, steps and tips.
For travel videos extract the destination, prices, places and the best time to visit.
For tutorials extract what is being made, the materials, the steps and the time required.
For product reviews extract the product, price, where to buy, pros, cons and the verdict.
For workouts extract the exercises with sets and reps, the duration and the equipment.

` + schemaInstructions,

	TikTokMetadata: `Analyze this TikTok video for USEFUL INFORMATION.

Title: "%s"
Author: %s

Based on the title and author, predict what useful information the video contains.
Do not be generic. Think about what the user wants to remember later.

` + schemaInstructions,

	TikTokURL: `Analyze this TikTok URL for potential content.

URL: %s

Based on the URL pattern, predict the content type and what information the user might want.

` + schemaInstructions,

	Screenshot: `Extract USEFUL INFORMATION from this screenshot. Read all visible text so the user does not need to look at the image again.

Flights and hotels: route, dates, prices, airline or hotel name.
Receipts and shopping: store, total, date, items and prices.
Restaurants and menus: restaurant name, dishes, prices, location.
Social media posts: key quotes, product recommendations, tips.
Messages and notes: addresses, phone numbers, links, reminders.

` + schemaInstructions,

	Generic: `Analyze this URL and describe the content it most likely points to.

URL: %s
Domain: %s

Based on the domain and URL structure, produce a descriptive title, a short description and 3-5 search tags.

` + schemaInstructions,
}

// BuildTikTokPrompt picks the richest TikTok prompt the inputs allow
func BuildTikTokPrompt(url string, meta *Metadata, transcript string) string {
	title, author := "Unknown", "Unknown"
	if meta != nil {
		title = firstNonEmpty(meta.Title, title)
		author = firstNonEmpty(meta.Author, author)
	}

	switch {
	case transcript != "":
		return fmt.Sprintf(PromptTemplates.TikTokTranscript,
			escapeForPrompt(title),
			escapeForPrompt(author),
			escapeForPrompt(transcript))
	case meta != nil && meta.Title != "":
		return fmt.Sprintf(PromptTemplates.TikTokMetadata,
			escapeForPrompt(title),
			escapeForPrompt(author))
	default:
		return fmt.Sprintf(PromptTemplates.TikTokURL, escapeForPrompt(url))
	}
}

// BuildGenericPrompt creates a prompt for links without a dedicated path
func BuildGenericPrompt(url, domain string) string {
	return fmt.Sprintf(PromptTemplates.Generic, escapeForPrompt(url), escapeForPrompt(domain))
}

// escapeForPrompt escapes special characters for use in prompts
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
