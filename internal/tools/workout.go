package tools

import (
	"fmt"
	"strings"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/guardrail"
)

// Workout plan kinds.
const (
	WorkoutWeightLoss     = "weight_loss"
	WorkoutMuscleGain     = "muscle_gain"
	WorkoutEndurance      = "endurance"
	WorkoutStrength       = "strength"
	WorkoutGeneralFitness = "general_fitness"
)

var workoutCatalog = map[string]domain.WorkoutPlan{
	WorkoutWeightLoss: {
		Days: []string{
			"Day 1: Cardio - 30 min HIIT (High-Intensity Interval Training) | Strength - Full body circuit (3 sets, 12 reps each)",
			"Day 2: Cardio - 45 min steady-state cardio (jogging/cycling) | Core - Planks, crunches, leg raises (15 min)",
			"Day 3: Strength - Upper body focus (chest, back, shoulders, arms) | Cardio - 20 min moderate intensity",
			"Day 4: Cardio - 30 min HIIT | Lower body strength (squats, lunges, deadlifts)",
			"Day 5: Active recovery - 30 min walking or yoga | Core and flexibility work",
			"Day 6: Strength - Full body compound movements | Cardio - 25 min interval training",
			"Day 7: Rest day - Light stretching or 20 min walking",
		},
		Intensity:  "moderate to high",
		Duration:   "45-60 minutes",
		FocusAreas: []string{"cardio", "strength", "fat_burning"},
	},
	WorkoutMuscleGain: {
		Days: []string{
			"Day 1: Chest and Triceps - Bench press, push-ups, dips, chest flyes (4 sets, 8-12 reps)",
			"Day 2: Back and Biceps - Pull-ups, rows, deadlifts, bicep curls (4 sets, 8-12 reps)",
			"Day 3: Legs - Squats, lunges, leg press, calf raises (4 sets, 10-15 reps)",
			"Day 4: Shoulders and Arms - Overhead press, lateral raises, tricep extensions (4 sets, 8-12 reps)",
			"Day 5: Full Body - Compound movements, deadlifts, squats, rows (3 sets, 8-10 reps)",
			"Day 6: Core and Cardio - Planks, crunches, 20 min moderate cardio",
			"Day 7: Rest day - Light stretching and recovery",
		},
		Intensity:  "high",
		Duration:   "60-75 minutes",
		FocusAreas: []string{"strength", "muscle_building", "progressive_overload"},
	},
	WorkoutEndurance: {
		Days: []string{
			"Day 1: Long distance cardio - 45-60 min running/cycling at moderate pace",
			"Day 2: Interval training - 30 min HIIT with 1:1 work/rest ratio",
			"Day 3: Strength - Full body with higher reps (3 sets, 15-20 reps)",
			"Day 4: Tempo training - 40 min at 70-80% max heart rate",
			"Day 5: Cross-training - Swimming, rowing, or elliptical (45 min)",
			"Day 6: Recovery run - 30 min easy pace | Core work",
			"Day 7: Rest day - Light stretching and mobility work",
		},
		Intensity:  "moderate",
		Duration:   "45-60 minutes",
		FocusAreas: []string{"endurance", "cardiovascular_fitness", "stamina"},
	},
	WorkoutStrength: {
		Days: []string{
			"Day 1: Push day - Bench press, overhead press, dips, push-ups (5 sets, 5-8 reps)",
			"Day 2: Pull day - Deadlifts, pull-ups, rows, bicep curls (5 sets, 5-8 reps)",
			"Day 3: Legs - Squats, lunges, leg press, calf raises (5 sets, 6-10 reps)",
			"Day 4: Rest day - Light stretching and recovery",
			"Day 5: Full body - Compound movements, deadlifts, squats (4 sets, 5-8 reps)",
			"Day 6: Accessory work - Isolation exercises, core work (3 sets, 10-15 reps)",
			"Day 7: Rest day - Complete rest or light walking",
		},
		Intensity:  "very high",
		Duration:   "60-90 minutes",
		FocusAreas: []string{"strength", "power", "compound_movements"},
	},
	WorkoutGeneralFitness: {
		Days: []string{
			"Day 1: Full body strength - Compound movements (3 sets, 10-12 reps)",
			"Day 2: Cardio - 30 min moderate intensity (running/cycling)",
			"Day 3: Upper body focus - Push and pull exercises (3 sets, 12-15 reps)",
			"Day 4: Lower body and core - Squats, lunges, planks (3 sets, 12-15 reps)",
			"Day 5: Cardio - 25 min HIIT or interval training",
			"Day 6: Flexibility and mobility - Yoga or stretching routine (30 min)",
			"Day 7: Rest day - Light activity or complete rest",
		},
		Intensity:  "moderate",
		Duration:   "45 minutes",
		FocusAreas: []string{"overall_fitness", "balance", "functional_movement"},
	},
}

// WorkoutKind selects a plan kind. Loss and gain keywords take precedence
// exactly as in goal classification; fitness goals are split further into
// endurance, strength and general plans.
func WorkoutKind(goal string) string {
	lower := strings.ToLower(goal)
	switch {
	case guardrail.ContainsAny(lower, lossKeywords):
		return WorkoutWeightLoss
	case guardrail.ContainsAny(lower, gainKeywords):
		return WorkoutMuscleGain
	case guardrail.ContainsAny(lower, []string{"endurance", "stamina"}):
		return WorkoutEndurance
	case guardrail.ContainsAny(lower, []string{"strength", "power"}):
		return WorkoutStrength
	default:
		return WorkoutGeneralFitness
	}
}

// RecommendWorkout returns the canned weekly plan matching the goal.
func RecommendWorkout(goal string) (domain.WorkoutPlan, error) {
	if !guardrail.ValidGoal(goal) {
		return domain.WorkoutPlan{}, fmt.Errorf("%w: workout goal failed validation", domain.ErrInvalidInput)
	}

	kind := WorkoutKind(goal)
	plan := workoutCatalog[kind]
	plan.Kind = kind
	plan.Days = append([]string(nil), plan.Days...)
	plan.FocusAreas = append([]string(nil), plan.FocusAreas...)
	return plan, nil
}
