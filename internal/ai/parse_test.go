package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"title":"x"}`, `{"title":"x"}`, true},
		{"fenced", "```json\n{\"title\":\"x\"}\n```", `{"title":"x"}`, true},
		{"prose around", `Sure! Here it is: {"title":"x"} Hope it helps.`, `{"title":"x"}`, true},
		{"trailing commas", `{"tags":["a","b",],}`, `{"tags":["a","b"]}`, true},
		{"no braces", "I could not analyze this.", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRawToleratesLooseShapes(t *testing.T) {
	reply := "```json\n" + `{
		"title": "  Garlic Pasta ",
		"category": "Recipe",
		"tags": "pasta",
		"servings": "serves 4",
		"rating": "4.5/5",
		"time": 15,
		"ingredients": ["spaghetti", {"name": "garlic", "amount": "3 cloves"}, {"item": "olive oil"}],
		"steps": [{"text": "Boil pasta"}, "Fry garlic", ""],
		"exercises": [{"exercise": "squat", "sets": "3", "reps": 12}],
	}` + "\n```"

	raw := ParseRaw(reply)

	assert.Equal(t, flexString("Garlic Pasta"), raw.Title)
	assert.Equal(t, flexString("Recipe"), raw.Category)
	assert.Equal(t, flexStrings{"pasta"}, raw.Tags)
	assert.InDelta(t, 4, float64(raw.Servings), 0.001)
	assert.InDelta(t, 4.5, float64(raw.Rating), 0.001)
	assert.Equal(t, flexString("15"), raw.Time)

	require.Len(t, raw.Ingredients, 3)
	assert.Equal(t, "spaghetti", raw.Ingredients[0].Name)
	assert.Equal(t, "garlic", raw.Ingredients[1].Name)
	assert.Equal(t, "3 cloves", raw.Ingredients[1].Amount)
	assert.Equal(t, "olive oil", raw.Ingredients[2].Name)

	assert.Equal(t, flexStrings{"Boil pasta", "Fry garlic"}, raw.Steps)

	require.Len(t, raw.Exercises, 1)
	assert.Equal(t, "squat", raw.Exercises[0].Name)
	assert.Equal(t, 3, raw.Exercises[0].Sets)
	assert.Equal(t, "12", raw.Exercises[0].Reps)
}

func TestParseRawFailureIsEmpty(t *testing.T) {
	assert.True(t, ParseRaw("not json at all").Empty())
	assert.True(t, ParseRaw(`{"title": }`).Empty())
	assert.True(t, ParseRaw(`{}`).Empty())
	assert.False(t, ParseRaw(`{"tags":["a"]}`).Empty())
}

func TestParseMinutes(t *testing.T) {
	tests := map[string]int{
		"":               0,
		"20 minutes":     20,
		"15 min":         15,
		"1 hour 15 min":  75,
		"1.5h":           90,
		"2 hours":        120,
		"25":             25,
		"about 10 mins!": 10,
		"quick":          0,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseMinutes(in), in)
	}
}
