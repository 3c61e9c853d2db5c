package models

// Category is the normalized classification used to pick a structured data variant
type Category string

const (
	CategoryCooking  Category = "cooking"
	CategoryTravel   Category = "travel"
	CategoryTutorial Category = "tutorial"
	CategoryReview   Category = "review"
	CategoryFitness  Category = "fitness"
	CategoryOther    Category = "other"
)

// StructuredData is a tagged union over Category. Exactly the variant named by
// Type is set; every other pointer is nil. Unknown categories use Generic.
type StructuredData struct {
	Type     Category    `json:"type,omitempty"`
	Cooking  *Recipe     `json:"cooking,omitempty"`
	Travel   *TravelPlan `json:"travel,omitempty"`
	Tutorial *Tutorial   `json:"tutorial,omitempty"`
	Review   *Review     `json:"review,omitempty"`
	Fitness  *Workout    `json:"fitness,omitempty"`
	Generic  *Generic    `json:"generic,omitempty"`
}

// Empty reports whether no variant has been set
func (s StructuredData) Empty() bool {
	return s.Type == ""
}

// Clone copies the union and its slices
func (s StructuredData) Clone() StructuredData {
	out := StructuredData{Type: s.Type}
	if s.Cooking != nil {
		r := *s.Cooking
		r.Ingredients = cloneSlice(s.Cooking.Ingredients)
		r.Steps = cloneSlice(s.Cooking.Steps)
		r.Tips = cloneSlice(s.Cooking.Tips)
		out.Cooking = &r
	}
	if s.Travel != nil {
		t := *s.Travel
		t.Places = cloneSlice(s.Travel.Places)
		t.Tips = cloneSlice(s.Travel.Tips)
		out.Travel = &t
	}
	if s.Tutorial != nil {
		t := *s.Tutorial
		t.Materials = cloneSlice(s.Tutorial.Materials)
		t.Steps = cloneSlice(s.Tutorial.Steps)
		out.Tutorial = &t
	}
	if s.Review != nil {
		r := *s.Review
		r.Pros = cloneSlice(s.Review.Pros)
		r.Cons = cloneSlice(s.Review.Cons)
		out.Review = &r
	}
	if s.Fitness != nil {
		w := *s.Fitness
		w.Exercises = cloneSlice(s.Fitness.Exercises)
		w.Equipment = cloneSlice(s.Fitness.Equipment)
		out.Fitness = &w
	}
	if s.Generic != nil {
		g := *s.Generic
		g.Details = cloneSlice(s.Generic.Details)
		out.Generic = &g
	}
	return out
}

type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount,omitempty"`
	Icon   string `json:"icon"`
}

type Step struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type Recipe struct {
	Dish         string       `json:"dish,omitempty"`
	Ingredients  []Ingredient `json:"ingredients"`
	Steps        []Step       `json:"steps"`
	TotalMinutes int          `json:"totalMinutes,omitempty"`
	Servings     int          `json:"servings,omitempty"`
	Cost         string       `json:"cost,omitempty"`
	Tips         []string     `json:"tips,omitempty"`
}

type TravelPlan struct {
	Destination string   `json:"destination,omitempty"`
	Places      []string `json:"places"`
	Budget      string   `json:"budget,omitempty"`
	Dates       string   `json:"dates,omitempty"`
	Tips        []string `json:"tips,omitempty"`
}

type Tutorial struct {
	Project    string   `json:"project,omitempty"`
	Materials  []string `json:"materials"`
	Steps      []Step   `json:"steps"`
	Duration   string   `json:"duration,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

type Review struct {
	Product    string   `json:"product,omitempty"`
	Price      string   `json:"price,omitempty"`
	WhereToBuy string   `json:"whereToBuy,omitempty"`
	Pros       []string `json:"pros"`
	Cons       []string `json:"cons"`
	Rating     float64  `json:"rating,omitempty"`
	Verdict    string   `json:"verdict,omitempty"`
}

type Exercise struct {
	Name string `json:"name"`
	Sets int    `json:"sets,omitempty"`
	Reps string `json:"reps,omitempty"`
}

type Workout struct {
	Name      string     `json:"name,omitempty"`
	Exercises []Exercise `json:"exercises"`
	Minutes   int        `json:"minutes,omitempty"`
	Level     string     `json:"level,omitempty"`
	Equipment []string   `json:"equipment,omitempty"`
}

// Generic is the fallback variant for categories without a dedicated shape
type Generic struct {
	KeyInfo string   `json:"keyInfo,omitempty"`
	Details []string `json:"details"`
}
