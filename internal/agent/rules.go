package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/wellness-planner/internal/guardrail"
	"github.com/ashureev/wellness-planner/internal/tools"
)

// RulesEngine is a deterministic keyword engine. It honors the full decision
// contract without a model, which keeps the service usable offline.
type RulesEngine struct{}

// NewRulesEngine returns the keyword engine.
func NewRulesEngine() *RulesEngine { return &RulesEngine{} }

// Name implements Engine.
func (*RulesEngine) Name() string { return "rules" }

// Close implements Engine.
func (*RulesEngine) Close() error { return nil }

type intent int

const (
	intentNone intent = iota
	intentEscalate
	intentInjury
	intentNutrition
	intentProgress
	intentCheckin
	intentWorkout
	intentMeal
	intentGoal
)

type intentRule struct {
	intent  intent
	pattern *regexp.Regexp
}

// intentRules is evaluated in order; the first rule with a matching keyword
// wins. Keywords match at the start of a word, so "eat" matches "eating" but
// not "great".
var intentRules = []intentRule{
	{intentEscalate, wordPrefixes("human", "real person", "coach", "not helpful", "unhappy", "frustrated", "speak to", "talk to someone")},
	{intentInjury, wordPrefixes("injur", "hurt", "sprain", "surgery", "physical therapy", "knee", "shoulder", "ankle", "wrist", "back pain", "neck pain")},
	{intentNutrition, wordPrefixes("allerg", "diabet", "celiac", "intoleran", "medical diet", "blood sugar", "cholesterol")},
	{intentProgress, wordPrefixes("progress", "lost", "i gained", "update:", "this week i", "completed", "managed to")},
	{intentCheckin, wordPrefixes("check-in", "checkin", "check in", "schedule", "remind")},
	{intentWorkout, wordPrefixes("workout", "exercise", "training", "routine", "gym")},
	{intentMeal, wordPrefixes("meal", "diet", "eat", "food", "recipe", "vegetarian", "vegan", "keto", "mediterranean")},
	{intentGoal, wordPrefixes("goal", "want to", "lose", "gain", "build", "get fit", "tone")},
}

// wordPrefixes compiles keywords into one pattern anchored at a word boundary.
func wordPrefixes(keywords ...string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
}

func classifyIntent(utterance string) intent {
	lower := strings.ToLower(utterance)
	for _, r := range intentRules {
		if r.pattern.MatchString(lower) {
			return r.intent
		}
	}
	return intentNone
}

// Decide implements Engine.
func (e *RulesEngine) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if req.HandoffFrom != "" || len(req.Agent.Tools) == 0 {
		return Final(specialistReply(req)), nil
	}
	if len(req.Outcomes) > 0 {
		return Final(summarizeOutcomes(req.Outcomes)), nil
	}

	switch in := classifyIntent(req.Utterance); in {
	case intentEscalate, intentInjury, intentNutrition:
		if h, ok := handoffFor(req.Agent, in); ok {
			return HandoffTo(h.Target, h.Description), nil
		}
	case intentProgress:
		return e.tool(req, tools.ProgressTracker)
	case intentCheckin:
		return e.tool(req, tools.CheckinScheduler)
	case intentWorkout:
		return e.tool(req, tools.WorkoutRecommender)
	case intentMeal:
		return e.tool(req, tools.MealPlanner)
	case intentGoal:
		return e.tool(req, tools.AnalyzeGoal)
	}
	return Final(generalReply(req)), nil
}

func (e *RulesEngine) tool(req DecisionRequest, name tools.Name) (Decision, error) {
	if !req.Agent.HasTool(name) {
		return Final(generalReply(req)), nil
	}
	call := tools.Call{ID: fmt.Sprintf("call_%d", len(req.Outcomes)+1), Name: name, Args: map[string]string{}}
	if spec, _ := tools.Lookup(name); spec.Input != nil {
		call.Args[spec.Input.Name] = toolInput(req, spec)
	}
	return CallTool(call), nil
}

// toolInput picks the text for a tool's guarded argument. When the utterance
// alone would not pass the guard, the matching session field is reused.
func toolInput(req DecisionRequest, spec tools.Spec) string {
	if guardrail.Check(spec.Guard, req.Utterance) || req.Session == nil {
		return req.Utterance
	}
	switch spec.Guard {
	case guardrail.DomainGoal:
		if req.Session.Goal != nil && req.Session.Goal.Description != "" {
			return req.Session.Goal.Description
		}
	case guardrail.DomainDiet:
		if req.Session.DietPreferences != "" {
			return req.Session.DietPreferences
		}
	}
	return req.Utterance
}

// handoffFor maps an intent to the edge whose guard covers it. Escalation is
// the unguarded edge.
func handoffFor(def *Definition, in intent) (Handoff, bool) {
	want := guardrail.DomainNone
	switch in {
	case intentInjury:
		want = guardrail.DomainInjury
	case intentNutrition:
		want = guardrail.DomainDiet
	}
	for _, h := range def.Handoffs {
		if h.Guard == want {
			return h, true
		}
	}
	return Handoff{}, false
}

func specialistReply(req DecisionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s here. ", req.Agent.Name)
	switch {
	case strings.Contains(req.Agent.Name, "Injury"):
		b.WriteString("I've noted your limitation and will keep every recommendation low-impact around it. ")
		b.WriteString("Please clear new exercises with your doctor or physical therapist first.")
	case strings.Contains(req.Agent.Name, "Nutrition"):
		b.WriteString("For specific dietary conditions I'll tailor meals to avoid your triggers and keep portions balanced. ")
		b.WriteString("Please confirm any medical diet with a registered dietitian.")
	case strings.Contains(req.Agent.Name, "Escalation"):
		b.WriteString("I've flagged your conversation for a human coach, who will follow up with you shortly.")
	default:
		b.WriteString("I'll take it from here.")
	}
	return b.String()
}

func generalReply(req DecisionRequest) string {
	greeting := "Hi"
	if req.Session != nil && req.Session.Name != "" {
		greeting = "Hi " + req.Session.Name
	}
	return greeting + "! I can analyze your goal, build meal or workout plans, schedule weekly check-ins and log your progress. What would you like to work on?"
}

func summarizeOutcomes(outcomes []ToolOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, summarizeResult(o.Result))
	}
	return strings.Join(parts, "\n\n")
}

func summarizeResult(res tools.Result) string {
	switch r := res.(type) {
	case tools.GoalAnalysis:
		g := r.Goal
		return fmt.Sprintf("Goal recorded: %s, %g %s over %s. Difficulty: %s.",
			strings.ReplaceAll(string(g.Category), "_", " "), g.Quantity, g.Unit, g.Duration, g.Difficulty)
	case tools.MealPlanResult:
		p := r.Plan
		return fmt.Sprintf("Here is your %s meal plan (%d kcal/day; protein %s, carbs %s, fat %s):\n%s",
			p.Style, p.TotalCalories, p.Macros.Protein, p.Macros.Carbs, p.Macros.Fat, strings.Join(p.Days, "\n"))
	case tools.WorkoutPlanResult:
		p := r.Plan
		return fmt.Sprintf("Here is your %s workout plan (%s intensity, %s per session; focus: %s):\n%s",
			strings.ReplaceAll(p.Kind, "_", " "), p.Intensity, p.Duration, strings.Join(p.FocusAreas, ", "), strings.Join(p.Days, "\n"))
	case tools.CheckinResult:
		s := r.Status
		return fmt.Sprintf("Your %s check-in is set for %s. %s",
			s.Frequency, s.NextCheckin.Format("Monday, Jan 2 at 15:04"), s.Reminder)
	case tools.ProgressResult:
		u := r.Update
		msg := u.MotivationalMessage
		if u.WeightChange != "" {
			msg = fmt.Sprintf("Logged a change of %s. %s", u.WeightChange, msg)
		}
		return msg + " Next steps: " + strings.Join(u.NextSteps, "; ") + "."
	default:
		panic(fmt.Sprintf("agent: unhandled tool result %T", res))
	}
}
