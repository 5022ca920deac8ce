// Package tools implements the deterministic planning tools the assistant can invoke.
//
// Every tool is a pure function of its validated input (plus the current time
// for scheduling and tracking). Tools never touch a session; the caller applies
// the returned Result.
package tools

import (
	"fmt"
	"sort"
	"time"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/guardrail"
)

// Name identifies a tool.
type Name string

const (
	AnalyzeGoal        Name = "analyze_goal"
	MealPlanner        Name = "meal_planner"
	WorkoutRecommender Name = "workout_recommender"
	CheckinScheduler   Name = "checkin_scheduler"
	ProgressTracker    Name = "progress_tracker"
)

// Param describes one string argument of a tool.
type Param struct {
	Name        string
	Description string
}

// Spec is the declared shape of a tool as offered to the reasoning engine.
type Spec struct {
	Name        Name
	Description string
	// Input is the argument carrying the free text the guard validates.
	// Empty when the tool takes no text.
	Input  *Param
	Guard  guardrail.Domain
	Params []Param
}

var specs = map[Name]Spec{
	AnalyzeGoal: {
		Name:        AnalyzeGoal,
		Description: "Analyze and parse a user goal into quantity, unit, duration, category and difficulty.",
		Input:       &Param{Name: "goal_text", Description: "The user's goal in their own words, e.g. 'lose 5kg in 2 months'."},
		Guard:       guardrail.DomainGoal,
	},
	MealPlanner: {
		Name:        MealPlanner,
		Description: "Generate a 7-day meal plan with calorie target and macro split from dietary preferences.",
		Input:       &Param{Name: "diet_preferences", Description: "Dietary preferences, e.g. 'vegetarian' or 'keto'."},
		Guard:       guardrail.DomainDiet,
	},
	WorkoutRecommender: {
		Name:        WorkoutRecommender,
		Description: "Generate a 7-day workout plan for the user's goal.",
		Input:       &Param{Name: "goal", Description: "The fitness goal the plan should serve."},
		Guard:       guardrail.DomainGoal,
	},
	CheckinScheduler: {
		Name:        CheckinScheduler,
		Description: "Schedule the user's next weekly progress check-in.",
		Guard:       guardrail.DomainNone,
	},
	ProgressTracker: {
		Name:        ProgressTracker,
		Description: "Record a progress update and return feedback and next steps.",
		Input:       &Param{Name: "update", Description: "What changed since the last update, e.g. 'lost 2kg this week'."},
		Guard:       guardrail.DomainNone,
	},
}

func init() {
	for name, s := range specs {
		if s.Input != nil {
			s.Params = []Param{*s.Input}
		}
		specs[name] = s
	}
}

// Lookup returns the spec for a tool name.
func Lookup(name Name) (Spec, bool) {
	s, ok := specs[name]
	return s, ok
}

// All returns every tool spec ordered by name.
func All() []Spec {
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call is a request to run a tool.
type Call struct {
	ID   string
	Name Name
	Args map[string]string
}

// Text returns the guarded text argument of the call.
func (c Call) Text() string {
	s, ok := specs[c.Name]
	if !ok || s.Input == nil {
		return ""
	}
	return c.Args[s.Input.Name]
}

// Result is the closed set of tool outputs.
type Result interface {
	Tool() Name
	isResult()
}

// GoalAnalysis is the output of AnalyzeGoal.
type GoalAnalysis struct{ Goal domain.Goal }

// MealPlanResult is the output of MealPlanner.
type MealPlanResult struct {
	Preferences string
	Plan        domain.MealPlan
}

// WorkoutPlanResult is the output of WorkoutRecommender.
type WorkoutPlanResult struct{ Plan domain.WorkoutPlan }

// CheckinResult is the output of CheckinScheduler.
type CheckinResult struct{ Status domain.CheckinStatus }

// ProgressResult is the output of ProgressTracker.
type ProgressResult struct{ Update domain.ProgressUpdate }

func (GoalAnalysis) Tool() Name      { return AnalyzeGoal }
func (MealPlanResult) Tool() Name    { return MealPlanner }
func (WorkoutPlanResult) Tool() Name { return WorkoutRecommender }
func (CheckinResult) Tool() Name     { return CheckinScheduler }
func (ProgressResult) Tool() Name    { return ProgressTracker }

func (GoalAnalysis) isResult()      {}
func (MealPlanResult) isResult()    {}
func (WorkoutPlanResult) isResult() {}
func (CheckinResult) isResult()     {}
func (ProgressResult) isResult()    {}

// Execute runs the named tool. uid is the identity of the session the call
// belongs to; now is the invocation time.
func Execute(call Call, uid int64, now time.Time) (Result, error) {
	switch call.Name {
	case AnalyzeGoal:
		goal, err := AnalyzeGoalText(call.Text())
		if err != nil {
			return nil, err
		}
		return GoalAnalysis{Goal: goal}, nil
	case MealPlanner:
		plan, err := PlanMeals(call.Text())
		if err != nil {
			return nil, err
		}
		return MealPlanResult{Preferences: call.Text(), Plan: plan}, nil
	case WorkoutRecommender:
		plan, err := RecommendWorkout(call.Text())
		if err != nil {
			return nil, err
		}
		return WorkoutPlanResult{Plan: plan}, nil
	case CheckinScheduler:
		status, err := ScheduleCheckin(uid, now)
		if err != nil {
			return nil, err
		}
		return CheckinResult{Status: status}, nil
	case ProgressTracker:
		update, err := TrackProgress(uid, call.Text(), now)
		if err != nil {
			return nil, err
		}
		return ProgressResult{Update: update}, nil
	default:
		return nil, fmt.Errorf("%w: unknown tool %q", domain.ErrInvalidInput, call.Name)
	}
}
