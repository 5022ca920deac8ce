package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/wellness-planner/internal/domain"
)

func TestAnalyzeGoalText(t *testing.T) {
	t.Parallel()

	goal, err := AnalyzeGoalText("lose 5kg in 2 months")
	require.NoError(t, err)
	assert.Equal(t, domain.GoalWeightLoss, goal.Category)
	assert.InDelta(t, 5.0, goal.Quantity, 1e-9)
	assert.Equal(t, "kg", goal.Unit)
	assert.Equal(t, "2 months", goal.Duration)
	assert.Equal(t, domain.DifficultyModerate, goal.Difficulty)
}

func TestAnalyzeGoalTextVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in         string
		category   domain.GoalCategory
		quantity   float64
		unit       string
		duration   string
		difficulty domain.Difficulty
	}{
		{"lose 20 pounds in 6 months", domain.GoalWeightLoss, 20, "pounds", "6 months", domain.DifficultyChallenging},
		{"gain 2kg of muscle in 1 week", domain.GoalMuscleGain, 2, "kg", "1 weeks", domain.DifficultyEasy},
		{"build muscle", domain.GoalMuscleGain, 5, "kg", "2 months", domain.DifficultyModerate},
		{"improve my endurance in 8 weeks", domain.GoalFitness, 1, "fitness_level", "8 weeks", domain.DifficultyEasy},
		{"lose fat and build muscle", domain.GoalWeightLoss, 5, "kg", "2 months", domain.DifficultyModerate},
		{"better cardio health", domain.GoalWeightLoss, 5, "kg", "2 months", domain.DifficultyModerate},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			goal, err := AnalyzeGoalText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.category, goal.Category)
			assert.InDelta(t, tt.quantity, goal.Quantity, 1e-9)
			assert.Equal(t, tt.unit, goal.Unit)
			assert.Equal(t, tt.duration, goal.Duration)
			assert.Equal(t, tt.difficulty, goal.Difficulty)
		})
	}
}

func TestAnalyzeGoalRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "asdf", "lose 80kg"} {
		_, err := AnalyzeGoalText(in)
		require.ErrorIs(t, err, domain.ErrInvalidInput, in)
	}
}

func TestPlanMeals(t *testing.T) {
	t.Parallel()

	plan, err := PlanMeals("I'm vegan and like spicy food")
	require.NoError(t, err)
	assert.Equal(t, "vegan", plan.Style)
	assert.Len(t, plan.Days, 7)
	assert.Equal(t, 1700, plan.TotalCalories)

	plan, err = PlanMeals("high-protein please")
	require.NoError(t, err)
	assert.Equal(t, BalancedStyle, plan.Style)
	assert.Equal(t, "25%", plan.Macros.Protein)

	plan, err = PlanMeals("Keto")
	require.NoError(t, err)
	assert.Equal(t, "5%", plan.Macros.Carbs)

	_, err = PlanMeals("pizza")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPlanMealsDoesNotShareCatalog(t *testing.T) {
	t.Parallel()

	plan, err := PlanMeals("mediterranean")
	require.NoError(t, err)
	plan.Days[0] = "changed"

	again, err := PlanMeals("mediterranean")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again.Days[0])
}

func TestRecommendWorkout(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"lose weight":                WorkoutWeightLoss,
		"build muscle":               WorkoutMuscleGain,
		"more endurance":             WorkoutEndurance,
		"increase strength":          WorkoutStrength,
		"get fit":                    WorkoutGeneralFitness,
		"tone up and improve cardio": WorkoutGeneralFitness,
	}
	for in, want := range tests {
		plan, err := RecommendWorkout(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, plan.Kind, in)
		assert.Len(t, plan.Days, 7, in)
	}

	_, err := RecommendWorkout("asdf")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScheduleCheckinLandsOnNextMonday(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("test", 2*60*60)
	start := time.Date(2026, 10, 12, 8, 30, 0, 0, loc) // a Monday
	for i := 0; i < 7; i++ {
		now := start.AddDate(0, 0, i)
		status, err := ScheduleCheckin(42, now)
		require.NoError(t, err)
		assert.Equal(t, time.Monday, status.NextCheckin.Weekday())
		assert.Equal(t, 9, status.NextCheckin.Hour())
		assert.True(t, status.NextCheckin.After(now), "check-in must be in the future for %s", now.Weekday())
		assert.LessOrEqual(t, status.NextCheckin.Sub(now), 7*24*time.Hour+time.Hour)
	}

	status, err := ScheduleCheckin(1, start)
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 0, 7).Day(), status.NextCheckin.Day())
	assert.Equal(t, "weekly", status.Frequency)
	assert.Len(t, status.Topics, 6)
}

func TestScheduleCheckinRejectsBadID(t *testing.T) {
	t.Parallel()

	for _, uid := range []int64{0, -3} {
		_, err := ScheduleCheckin(uid, time.Now())
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestTrackProgress(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	update, err := TrackProgress(5, "Lost 2kg this week", now)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressWeight, update.Category)
	assert.Equal(t, "-2 kg", update.WeightChange)
	assert.Equal(t, now, update.Timestamp)
	assert.NotEmpty(t, update.MotivationalMessage)
	assert.Len(t, update.NextSteps, 4)

	cases := map[string]domain.ProgressCategory{
		"went to the gym 3 times":  domain.ProgressFitness,
		"stuck to my meal plan":    domain.ProgressNutrition,
		"sleeping much better":     domain.ProgressWellness,
		"nothing much to say here": domain.ProgressGeneral,
	}
	for in, want := range cases {
		got, err := TrackProgress(5, in, now)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Category, in)
		assert.Empty(t, got.WeightChange, in)
	}

	_, err = TrackProgress(5, " a ", now)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExecuteDispatch(t *testing.T) {
	t.Parallel()

	now := time.Now()
	res, err := Execute(Call{Name: AnalyzeGoal, Args: map[string]string{"goal_text": "lose 5kg in 2 months"}}, 1, now)
	require.NoError(t, err)
	goal, ok := res.(GoalAnalysis)
	require.True(t, ok)
	assert.Equal(t, AnalyzeGoal, goal.Tool())

	res, err = Execute(Call{Name: MealPlanner, Args: map[string]string{"diet_preferences": "vegetarian"}}, 1, now)
	require.NoError(t, err)
	meal, ok := res.(MealPlanResult)
	require.True(t, ok)
	assert.Equal(t, "vegetarian", meal.Preferences)

	_, err = Execute(Call{Name: "teleport"}, 1, now)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSpecsDeclareGuards(t *testing.T) {
	t.Parallel()

	all := All()
	require.Len(t, all, 5)
	for _, s := range all {
		if s.Guard != "" {
			require.NotNil(t, s.Input, "guarded tool %s must declare its text input", s.Name)
		}
	}
	spec, ok := Lookup(CheckinScheduler)
	require.True(t, ok)
	assert.Empty(t, spec.Params)
}
