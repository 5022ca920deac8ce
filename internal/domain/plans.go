package domain

import "time"

// GoalCategory classifies a parsed goal.
type GoalCategory string

const (
	GoalWeightLoss GoalCategory = "weight_loss"
	GoalMuscleGain GoalCategory = "muscle_gain"
	GoalFitness    GoalCategory = "fitness"
)

// Difficulty is the tier derived from a goal's quantity and duration.
type Difficulty string

const (
	DifficultyEasy        Difficulty = "easy"
	DifficultyModerate    Difficulty = "moderate"
	DifficultyChallenging Difficulty = "challenging"
)

// Goal is the structured result of goal analysis.
type Goal struct {
	Quantity    float64      `json:"quantity"`
	Unit        string       `json:"unit"`
	Duration    string       `json:"duration"`
	Category    GoalCategory `json:"category"`
	Difficulty  Difficulty   `json:"difficulty"`
	Description string       `json:"description"`
}

// Macros is a macro-nutrient split expressed as percentages.
type Macros struct {
	Protein string `json:"protein"`
	Carbs   string `json:"carbs"`
	Fat     string `json:"fat"`
}

// MealPlan is a seven day meal plan.
type MealPlan struct {
	Style         string   `json:"style"`
	Days          []string `json:"days"`
	TotalCalories int      `json:"total_calories"`
	Macros        Macros   `json:"macros"`
}

// WorkoutPlan is a seven day workout plan.
type WorkoutPlan struct {
	Kind       string   `json:"kind"`
	Days       []string `json:"days"`
	Intensity  string   `json:"intensity"`
	Duration   string   `json:"duration"`
	FocusAreas []string `json:"focus_areas"`
}

// CheckinStatus is the outcome of scheduling the next weekly check-in.
type CheckinStatus struct {
	Status      string    `json:"status"`
	UserID      int64     `json:"user_id"`
	NextCheckin time.Time `json:"next_checkin"`
	Frequency   string    `json:"frequency"`
	Reminder    string    `json:"reminder"`
	Topics      []string  `json:"checkin_topics"`
}

// ProgressCategory classifies a progress update.
type ProgressCategory string

const (
	ProgressWeight    ProgressCategory = "weight"
	ProgressFitness   ProgressCategory = "fitness"
	ProgressNutrition ProgressCategory = "nutrition"
	ProgressWellness  ProgressCategory = "wellness"
	ProgressGeneral   ProgressCategory = "general"
)

// ProgressUpdate is the outcome of tracking one progress report.
type ProgressUpdate struct {
	Status              string           `json:"status"`
	UserID              int64            `json:"user_id"`
	Update              string           `json:"update"`
	Timestamp           time.Time        `json:"timestamp"`
	Category            ProgressCategory `json:"category"`
	WeightChange        string           `json:"weight_change,omitempty"`
	MotivationalMessage string           `json:"motivational_message"`
	NextSteps           []string         `json:"next_steps"`
}
