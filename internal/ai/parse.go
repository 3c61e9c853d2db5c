package ai

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	codeFenceRegex     = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
	leadingNumberRegex = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
	hoursRegex         = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:h|hr|hrs|hour|hours)\b`)
	minutesRegex       = regexp.MustCompile(`(?i)(\d+)\s*(?:m|min|mins|minute|minutes)\b`)
)

// ExtractJSON pulls the JSON object out of a model reply. It removes code
// fences, keeps the text between the outermost braces and strips trailing
// commas. ok is false when no braces are present.
func ExtractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}

	return trailingCommaRegex.ReplaceAllString(text[start:end+1], "$1"), true
}

// ParseRaw decodes a model reply into the fixed analysis schema. Parse
// failures are not errors: they produce an empty result and the caller
// substitutes defaults.
func ParseRaw(text string) rawAnalysis {
	var raw rawAnalysis
	body, ok := ExtractJSON(text)
	if !ok {
		return raw
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return rawAnalysis{}
	}
	return raw
}

// rawAnalysis is the union of every field the prompts ask for. Field types
// accept the loose shapes models tend to produce (numbers as strings, single
// strings instead of lists, objects instead of strings).
type rawAnalysis struct {
	Title       flexString  `json:"title"`
	Description flexString  `json:"description"`
	KeyInfo     flexString  `json:"keyInfo"`
	Category    flexString  `json:"category"`
	Details     flexStrings `json:"details"`
	Tags        flexStrings `json:"tags"`
	Summary     flexString  `json:"summary"`

	// cooking
	Dish        flexString       `json:"dish"`
	Ingredients []flexIngredient `json:"ingredients"`
	Steps       flexStrings      `json:"steps"`
	Time        flexString       `json:"time"`
	Servings    flexNumber       `json:"servings"`
	Cost        flexString       `json:"cost"`
	Tips        flexStrings      `json:"tips"`

	// travel
	Destination flexString  `json:"destination"`
	Places      flexStrings `json:"places"`
	Budget      flexString  `json:"budget"`
	Dates       flexString  `json:"dates"`

	// tutorial
	Project    flexString  `json:"project"`
	Materials  flexStrings `json:"materials"`
	Duration   flexString  `json:"duration"`
	Difficulty flexString  `json:"difficulty"`

	// review
	Product    flexString  `json:"product"`
	Price      flexString  `json:"price"`
	WhereToBuy flexString  `json:"whereToBuy"`
	Pros       flexStrings `json:"pros"`
	Cons       flexStrings `json:"cons"`
	Rating     flexNumber  `json:"rating"`
	Verdict    flexString  `json:"verdict"`

	// fitness
	Workout   flexString     `json:"workout"`
	Exercises []flexExercise `json:"exercises"`
	Level     flexString     `json:"level"`
	Equipment flexStrings    `json:"equipment"`
}

// Empty reports whether the model gave nothing usable
func (r rawAnalysis) Empty() bool {
	return r.Title == "" && len(r.Tags) == 0 && r.KeyInfo == "" && r.Description == ""
}

// flexString accepts strings, numbers and booleans
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(strings.TrimSpace(str))
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*s = flexString(strconv.FormatBool(t))
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if ps, ok := p.(string); ok && ps != "" {
				parts = append(parts, ps)
			}
		}
		*s = flexString(strings.Join(parts, ", "))
	}
	return nil
}

// flexStrings accepts a list of scalars or objects, or a single string
type flexStrings []string

func (l *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] != '[' {
		var s flexString
		if err := s.UnmarshalJSON(data); err != nil {
			return nil
		}
		if s != "" {
			*l = flexStrings{string(s)}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	out := make(flexStrings, 0, len(items))
	for _, item := range items {
		if text := textOf(item); text != "" {
			out = append(out, text)
		}
	}
	*l = out
	return nil
}

// textOf renders a scalar, or the first text-like field of an object
func textOf(data json.RawMessage) string {
	var s flexString
	if err := s.UnmarshalJSON(data); err == nil && s != "" {
		return string(s)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"text", "step", "instruction", "name", "title", "description"} {
		if v, ok := obj[key]; ok {
			var fs flexString
			if fs.UnmarshalJSON(v) == nil && fs != "" {
				return string(fs)
			}
		}
	}
	return ""
}

// flexNumber accepts numbers or strings with a leading number ("4.5/5", "serves 4")
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return nil
	}
	m := leadingNumberRegex.FindString(string(s))
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	*n = flexNumber(f)
	return nil
}

type flexIngredient struct {
	Name   string
	Amount string
}

func (i *flexIngredient) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i.Name = strings.TrimSpace(s)
		return nil
	}

	var obj struct {
		Name     flexString `json:"name"`
		Item     flexString `json:"item"`
		Amount   flexString `json:"amount"`
		Quantity flexString `json:"quantity"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	i.Name = string(firstNonEmpty(string(obj.Name), string(obj.Item)))
	i.Amount = string(firstNonEmpty(string(obj.Amount), string(obj.Quantity)))
	return nil
}

type flexExercise struct {
	Name string
	Sets int
	Reps string
}

func (e *flexExercise) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Name = strings.TrimSpace(s)
		return nil
	}

	var obj struct {
		Name     flexString `json:"name"`
		Exercise flexString `json:"exercise"`
		Sets     flexNumber `json:"sets"`
		Reps     flexString `json:"reps"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	e.Name = firstNonEmpty(string(obj.Name), string(obj.Exercise))
	e.Sets = int(obj.Sets)
	e.Reps = string(obj.Reps)
	return nil
}

// parseMinutes reads durations like "20 minutes", "1 hour 15 min", "1.5h" or "25"
func parseMinutes(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	total := 0.0
	matched := false
	if m := hoursRegex.FindStringSubmatch(s); m != nil {
		if h, err := strconv.ParseFloat(m[1], 64); err == nil {
			total += h * 60
			matched = true
		}
	}
	if m := minutesRegex.FindStringSubmatch(s); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += float64(v)
			matched = true
		}
	}
	if !matched {
		if v, err := strconv.Atoi(leadingNumberRegex.FindString(s)); err == nil {
			total = float64(v)
		}
	}
	return int(total + 0.5)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
