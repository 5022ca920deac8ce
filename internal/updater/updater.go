// Package updater applies tool results to a session.
//
// Current-state fields (goal, meal plan, workout plan) are last-write-wins.
// History fields (progress logs, conversation history) are append-only.
package updater

import (
	"fmt"
	"time"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/tools"
)

// Apply maps one tool result onto the session. utterance is the user's text
// for the turn and is recorded on progress log entries.
func Apply(s *domain.Session, res tools.Result, utterance string, now time.Time) {
	switch r := res.(type) {
	case tools.GoalAnalysis:
		goal := r.Goal
		s.Goal = &goal
	case tools.MealPlanResult:
		s.MealPlan = append([]string(nil), r.Plan.Days...)
		if r.Preferences != "" {
			s.DietPreferences = r.Preferences
		}
	case tools.WorkoutPlanResult:
		plan := r.Plan
		s.WorkoutPlan = &plan
	case tools.ProgressResult:
		update := r.Update
		s.AppendProgress(domain.ProgressLog{
			Input:    utterance,
			Kind:     domain.ProgressKindUpdate,
			Progress: &update,
		})
	case tools.CheckinResult:
		status := r.Status
		s.AppendProgress(domain.ProgressLog{
			Input:   utterance,
			Kind:    domain.ProgressKindCheckin,
			Checkin: &status,
		})
		s.AppendMessage(domain.RoleSystem, CheckinSummary(status), now)
	default:
		panic(fmt.Sprintf("updater: unhandled tool result %T", res))
	}
}

// CheckinSummary renders the system note added to the conversation history.
func CheckinSummary(status domain.CheckinStatus) string {
	return fmt.Sprintf("Check-in scheduled: %s %s (next: %s)",
		status.Frequency, status.Status, status.NextCheckin.Format("2006-01-02 15:04"))
}
