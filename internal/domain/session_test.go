package domain

import (
	"testing"
	"time"
)

func TestTouchNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := NewSession(1, "Ada", "", now)

	s.Touch(now.Add(-time.Hour))
	if !s.LastUpdated.Equal(now) {
		t.Fatalf("LastUpdated moved backwards: %v", s.LastUpdated)
	}

	later := now.Add(time.Minute)
	s.Touch(later)
	if !s.LastUpdated.Equal(later) {
		t.Fatalf("LastUpdated = %v, want %v", s.LastUpdated, later)
	}
}

func TestClearHistoryLeavesOtherFields(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewSession(7, "Ada", "ada@example.com", now)
	s.AppendMessage(RoleUser, "hello", now)
	s.AppendMessage(RoleAssistant, "hi", now)
	s.AppendProgress(ProgressLog{Input: "lost 1kg", Kind: ProgressKindUpdate})
	s.MealPlan = []string{"Day 1"}

	s.ClearHistory()

	if len(s.ConversationHistory) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(s.ConversationHistory))
	}
	if len(s.ProgressLogs) != 1 {
		t.Fatalf("progress logs changed: %d", len(s.ProgressLogs))
	}
	if len(s.MealPlan) != 1 {
		t.Fatalf("meal plan changed: %v", s.MealPlan)
	}
}

func TestExportKeepsLastTenMessages(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewSession(3, "Ada", "", now)
	for i := 0; i < 15; i++ {
		s.AppendMessage(RoleUser, "msg", now)
	}

	exp := s.Export()
	if len(exp.ConversationHistory) != 10 {
		t.Fatalf("export history = %d, want 10", len(exp.ConversationHistory))
	}

	exp.ConversationHistory[0].Content = "changed"
	if s.ConversationHistory[5].Content != "msg" {
		t.Fatal("export aliased the session history")
	}
}

func TestExportDoesNotAliasPlans(t *testing.T) {
	t.Parallel()

	s := NewSession(4, "Ada", "", time.Now())
	s.Goal = &Goal{Category: GoalWeightLoss, Quantity: 5}
	s.WorkoutPlan = &WorkoutPlan{Kind: "weight_loss", Days: []string{"Day 1"}, FocusAreas: []string{"cardio"}}
	s.AppendProgress(ProgressLog{Kind: ProgressKindUpdate, Progress: &ProgressUpdate{NextSteps: []string{"rest"}}})
	s.AppendProgress(ProgressLog{Kind: ProgressKindCheckin, Checkin: &CheckinStatus{Topics: []string{"sleep"}}})

	exp := s.Export()
	exp.Goal.Quantity = 50
	exp.WorkoutPlan.Days[0] = "changed"
	exp.WorkoutPlan.FocusAreas[0] = "changed"
	exp.ProgressLogs[0].Progress.NextSteps[0] = "changed"
	exp.ProgressLogs[1].Checkin.Topics[0] = "changed"

	if s.Goal.Quantity != 5 {
		t.Fatalf("export aliased the goal: %v", s.Goal.Quantity)
	}
	if s.WorkoutPlan.Days[0] != "Day 1" || s.WorkoutPlan.FocusAreas[0] != "cardio" {
		t.Fatalf("export aliased the workout plan: %+v", s.WorkoutPlan)
	}
	if s.ProgressLogs[0].Progress.NextSteps[0] != "rest" || s.ProgressLogs[1].Checkin.Topics[0] != "sleep" {
		t.Fatal("export aliased the progress logs")
	}
}
