package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/wellness-planner/internal/guardrail"
	"github.com/ashureev/wellness-planner/internal/tools"
)

func TestBuiltinDefinitions(t *testing.T) {
	t.Parallel()

	reg, err := LoadDefinitions("")
	require.NoError(t, err)

	primary := reg.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, "HealthWellnessPlanner", primary.Name)
	assert.Len(t, primary.Tools, 5)
	assert.Len(t, primary.Handoffs, 3)
	for _, name := range []tools.Name{tools.AnalyzeGoal, tools.MealPlanner, tools.WorkoutRecommender, tools.CheckinScheduler, tools.ProgressTracker} {
		assert.True(t, primary.HasTool(name), name)
	}

	injury, ok := primary.Handoff("InjurySupportAgent")
	require.True(t, ok)
	assert.Equal(t, guardrail.DomainInjury, injury.Guard)

	escalation, ok := primary.Handoff("EscalationAgent")
	require.True(t, ok)
	assert.Equal(t, guardrail.DomainNone, escalation.Guard)

	for _, name := range []string{"EscalationAgent", "NutritionExpertAgent", "InjurySupportAgent"} {
		def, ok := reg.Get(name)
		require.True(t, ok, name)
		assert.Empty(t, def.Tools)
		assert.Empty(t, def.Handoffs)
		assert.NotEmpty(t, def.Instructions)
	}
	assert.Equal(t, []string{"HealthWellnessPlanner", "EscalationAgent", "NutritionExpertAgent", "InjurySupportAgent"}, reg.Names())
}

func TestRegistryRejectsBrokenTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		defs []Definition
	}{
		{"missing target", []Definition{
			{Name: "A", Primary: true, Handoffs: []Handoff{{Target: "Ghost"}}},
		}},
		{"no primary", []Definition{{Name: "A"}, {Name: "B"}}},
		{"two primaries", []Definition{{Name: "A", Primary: true}, {Name: "B", Primary: true}}},
		{"duplicate name", []Definition{{Name: "A", Primary: true}, {Name: "A"}}},
		{"unknown tool", []Definition{{Name: "A", Primary: true, Tools: []tools.Name{"teleport"}}}},
		{"unknown guard", []Definition{
			{Name: "A", Primary: true, Handoffs: []Handoff{{Target: "B", Guard: "astrology"}}},
			{Name: "B"},
		}},
		{"self handoff", []Definition{{Name: "A", Primary: true, Handoffs: []Handoff{{Target: "A"}}}}},
		{"unnamed", []Definition{{Name: " ", Primary: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRegistry(tt.defs)
			assert.ErrorIs(t, err, ErrInvalidDefinitions)
		})
	}
}

func TestLoadDefinitionsFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agents.yaml")
	data := []byte(`
agents:
  - name: Coach
    primary: true
    instructions: Help.
    tools: [analyze_goal]
    handoffs:
      - target: Physio
        guard: Injury
  - name: Physio
    instructions: Treat.
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	reg, err := LoadDefinitions(path)
	require.NoError(t, err)
	h, ok := reg.Primary().Handoff("Physio")
	require.True(t, ok)
	assert.Equal(t, guardrail.DomainInjury, h.Guard)

	_, err = LoadDefinitions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
