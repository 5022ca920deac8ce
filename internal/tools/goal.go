package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/guardrail"
)

const (
	defaultQuantity = 5.0
	defaultUnit     = "kg"
	defaultDuration = "2 months"
)

var (
	lossKeywords    = []string{"lose", "weight"}
	gainKeywords    = []string{"gain", "muscle", "build"}
	fitnessKeywords = []string{"fit", "endurance", "strength"}
)

// ClassifyGoal applies the first-match keyword precedence: loss, then gain,
// then fitness. Text matching none of them is treated as weight loss.
func ClassifyGoal(text string) domain.GoalCategory {
	lower := strings.ToLower(text)
	switch {
	case guardrail.ContainsAny(lower, lossKeywords):
		return domain.GoalWeightLoss
	case guardrail.ContainsAny(lower, gainKeywords):
		return domain.GoalMuscleGain
	case guardrail.ContainsAny(lower, fitnessKeywords):
		return domain.GoalFitness
	default:
		return domain.GoalWeightLoss
	}
}

// AnalyzeGoalText parses a goal statement into a structured goal.
func AnalyzeGoalText(text string) (domain.Goal, error) {
	if !guardrail.ValidGoal(text) {
		return domain.Goal{}, fmt.Errorf("%w: goal text failed validation", domain.ErrInvalidInput)
	}

	lower := strings.ToLower(text)
	goal := domain.Goal{
		Quantity:    defaultQuantity,
		Unit:        defaultUnit,
		Duration:    defaultDuration,
		Category:    ClassifyGoal(lower),
		Description: lower,
	}

	switch goal.Category {
	case domain.GoalWeightLoss, domain.GoalMuscleGain:
		if q, unit, ok := parseQuantity(lower); ok {
			goal.Quantity = q
			goal.Unit = unit
		}
	case domain.GoalFitness:
		goal.Quantity = 1
		goal.Unit = "fitness_level"
	}

	amount, unit, hasDuration := parseDuration(lower)
	if hasDuration {
		goal.Duration = fmt.Sprintf("%d %s", amount, unit)
	} else {
		amount, unit = 2, "months"
	}

	goal.Difficulty = difficulty(goal.Quantity, amount, unit)
	return goal, nil
}

func parseQuantity(lower string) (float64, string, bool) {
	m := guardrail.QuantityPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, "", false
	}
	q, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}
	switch m[2] {
	case "pounds", "pound", "lbs", "lb":
		return q, "pounds", true
	default:
		return q, "kg", true
	}
}

// parseDuration returns the amount and the plural unit name.
func parseDuration(lower string) (int, string, bool) {
	m := guardrail.DurationPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, "", false
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	unit := m[2]
	if !strings.HasSuffix(unit, "s") {
		unit += "s"
	}
	return amount, unit, true
}

func difficulty(quantity float64, amount int, unit string) domain.Difficulty {
	switch {
	case quantity > 10 || (unit == "months" && amount > 3):
		return domain.DifficultyChallenging
	case quantity < 3 || (unit == "weeks" && amount < 2):
		return domain.DifficultyEasy
	default:
		return domain.DifficultyModerate
	}
}
