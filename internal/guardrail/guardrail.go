// Package guardrail holds the input validators that run before a tool or a
// specialist handoff is allowed to execute.
package guardrail

import (
	"regexp"
	"strconv"
	"strings"
)

// Domain names the area a validator guards.
type Domain string

const (
	DomainNone   Domain = ""
	DomainGoal   Domain = "goal"
	DomainDiet   Domain = "diet"
	DomainInjury Domain = "injury"
)

const (
	minGoalLength   = 3
	minDietLength   = 2
	minInjuryLength = 3

	maxGoalQuantity = 50
	maxDays         = 365
	maxWeeks        = 52
	maxMonths       = 12
)

var (
	// QuantityPattern matches a mass quantity such as "5kg" or "10 pounds".
	QuantityPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(kg|pounds?|lbs?|kilos?)`)
	// DurationPattern matches a duration such as "2 months" or "6 weeks".
	DurationPattern = regexp.MustCompile(`(\d+)\s*(weeks?|months?|days?)`)
)

var (
	goalKeywords = []string{
		"lose", "gain", "weight", "muscle", "fit", "endurance", "strength",
		"build", "tone", "slim", "bulk", "cardio", "health", "wellness",
	}
	dietKeywords = []string{
		"vegetarian", "vegan", "keto", "paleo", "mediterranean", "low-carb",
		"high-protein", "gluten-free", "dairy-free", "balanced", "healthy",
	}
	injuryKeywords = []string{
		"knee", "back", "shoulder", "ankle", "wrist", "hip", "neck",
		"pain", "injury", "surgery", "recovery", "physical therapy",
		"limited", "restricted", "avoid", "careful",
	}
)

// Validator is a pass/fail predicate over raw text.
type Validator func(text string) bool

// ValidGoal reports whether text is an acceptable goal statement.
func ValidGoal(text string) bool {
	if len(strings.TrimSpace(text)) < minGoalLength {
		return false
	}
	lower := strings.ToLower(text)
	if !ContainsAny(lower, goalKeywords) {
		return false
	}

	if m := QuantityPattern.FindStringSubmatch(lower); m != nil {
		quantity, err := strconv.ParseFloat(m[1], 64)
		if err != nil || quantity > maxGoalQuantity {
			return false
		}
	}

	if m := DurationPattern.FindStringSubmatch(lower); m != nil {
		amount, err := strconv.Atoi(m[1])
		if err != nil {
			return false
		}
		switch unit := m[2]; {
		case strings.HasPrefix(unit, "day") && amount > maxDays:
			return false
		case strings.HasPrefix(unit, "week") && amount > maxWeeks:
			return false
		case strings.HasPrefix(unit, "month") && amount > maxMonths:
			return false
		}
	}
	return true
}

// ValidDiet reports whether text describes a dietary preference.
func ValidDiet(text string) bool {
	if len(strings.TrimSpace(text)) < minDietLength {
		return false
	}
	return ContainsAny(strings.ToLower(text), dietKeywords)
}

// ValidInjury reports whether text describes an injury or physical limitation.
func ValidInjury(text string) bool {
	if len(strings.TrimSpace(text)) < minInjuryLength {
		return false
	}
	return ContainsAny(strings.ToLower(text), injuryKeywords)
}

// For returns the validator paired with a domain. DomainNone has no validator.
func For(d Domain) (Validator, bool) {
	switch d {
	case DomainGoal:
		return ValidGoal, true
	case DomainDiet:
		return ValidDiet, true
	case DomainInjury:
		return ValidInjury, true
	default:
		return nil, false
	}
}

// Check runs the validator for d. Domains without a validator always pass.
func Check(d Domain, text string) bool {
	v, ok := For(d)
	if !ok {
		return true
	}
	return v(text)
}

// ParseDomain converts a configured domain name.
func ParseDomain(s string) (Domain, bool) {
	switch d := Domain(strings.ToLower(strings.TrimSpace(s))); d {
	case DomainNone, DomainGoal, DomainDiet, DomainInjury:
		return d, true
	default:
		return DomainNone, false
	}
}

// ContainsAny reports whether s contains any of the keywords. s must already be lowercase.
func ContainsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
