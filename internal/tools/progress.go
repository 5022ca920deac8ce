package tools

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/guardrail"
)

const minUpdateLength = 3

var weightChangePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(kg|pounds?|lbs?)`)

// progressRules is evaluated in order; the first match wins.
var progressRules = []struct {
	category domain.ProgressCategory
	keywords []string
}{
	{domain.ProgressWeight, []string{"weight", "lost", "gain", "pound", "kg"}},
	{domain.ProgressFitness, []string{"workout", "exercise", "gym", "run", "cardio"}},
	{domain.ProgressNutrition, []string{"meal", "diet", "food", "eat"}},
	{domain.ProgressWellness, []string{"energy", "mood", "feel", "sleep"}},
}

var motivationalMessages = map[domain.ProgressCategory]string{
	domain.ProgressWeight:    "Great job on your weight management! Keep up the consistent effort.",
	domain.ProgressFitness:   "Excellent work on your fitness routine! Your dedication is paying off.",
	domain.ProgressNutrition: "Fantastic progress with your nutrition! You're building healthy habits.",
	domain.ProgressWellness:  "Wonderful to hear about your wellness improvements! Keep prioritizing your health.",
	domain.ProgressGeneral:   "Thank you for the update! Every step forward counts towards your goals.",
}

var nextSteps = []string{
	"Continue with your current routine",
	"Stay consistent with your meal plan",
	"Keep tracking your progress",
	"Stay hydrated and get enough sleep",
}

// ClassifyProgress returns the first matching progress category.
func ClassifyProgress(update string) domain.ProgressCategory {
	lower := strings.ToLower(update)
	for _, r := range progressRules {
		if guardrail.ContainsAny(lower, r.keywords) {
			return r.category
		}
	}
	return domain.ProgressGeneral
}

// WeightChange extracts a signed loss such as "-2 kg" when the update reports
// losing weight. It returns "" otherwise.
func WeightChange(update string) string {
	lower := strings.ToLower(update)
	if !strings.Contains(lower, "lost") && !strings.Contains(lower, "lose") {
		return ""
	}
	m := weightChangePattern.FindStringSubmatch(lower)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("-%s %s", m[1], m[2])
}

// TrackProgress classifies a progress update and attaches feedback.
func TrackProgress(uid int64, update string, now time.Time) (domain.ProgressUpdate, error) {
	if len(strings.TrimSpace(update)) < minUpdateLength {
		return domain.ProgressUpdate{}, fmt.Errorf("%w: progress update is too short", domain.ErrInvalidInput)
	}

	category := ClassifyProgress(update)
	return domain.ProgressUpdate{
		Status:              "progress updated",
		UserID:              uid,
		Update:              update,
		Timestamp:           now.UTC(),
		Category:            category,
		WeightChange:        WeightChange(update),
		MotivationalMessage: motivationalMessages[category],
		NextSteps:           append([]string(nil), nextSteps...),
	}, nil
}
