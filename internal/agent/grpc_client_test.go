package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/tools"
)

func TestEncodeDecisionRequest(t *testing.T) {
	t.Parallel()

	goal, err := tools.AnalyzeGoalText("gain 4kg of muscle in 3 months")
	require.NoError(t, err)

	in, err := encodeDecisionRequest(DecisionRequest{
		Agent:     builtinRegistry(t).Primary(),
		Session:   domain.NewSession(9, "Ada", "", time.Now()),
		History:   []domain.Message{{Role: domain.RoleUser, Content: "gain 4kg of muscle in 3 months"}},
		Utterance: "gain 4kg of muscle in 3 months",
		Outcomes: []ToolOutcome{{
			Call:   tools.Call{ID: "c1", Name: tools.AnalyzeGoal, Args: map[string]string{"goal_text": "gain 4kg"}},
			Result: tools.GoalAnalysis{Goal: goal},
		}},
	})
	require.NoError(t, err)

	m := in.AsMap()
	assert.Equal(t, "HealthWellnessPlanner", m["agent"])
	assert.Len(t, m["tools"], 5)
	assert.Len(t, m["handoffs"], 3)
	outcomes := m["outcomes"].([]any)
	require.Len(t, outcomes, 1)
	result := outcomes[0].(map[string]any)["result"].(map[string]any)
	assert.Equal(t, "muscle_gain", result["category"])
	assert.EqualValues(t, 4, result["quantity"])
}

func TestDecodeDecision(t *testing.T) {
	t.Parallel()

	mustStruct := func(m map[string]any) *structpb.Struct {
		s, err := structpb.NewStruct(m)
		require.NoError(t, err)
		return s
	}

	d, err := decodeDecision(mustStruct(map[string]any{"kind": "final", "text": "ok"}))
	require.NoError(t, err)
	assert.Equal(t, Final("ok"), d)

	d, err = decodeDecision(mustStruct(map[string]any{
		"kind": "tool_call", "call_id": "c2", "tool": "progress_tracker",
		"args": map[string]any{"update": "ran 5k"},
	}))
	require.NoError(t, err)
	assert.Equal(t, CallTool(tools.Call{ID: "c2", Name: tools.ProgressTracker, Args: map[string]string{"update": "ran 5k"}}), d)

	d, err = decodeDecision(mustStruct(map[string]any{"kind": "handoff", "target": "EscalationAgent", "reason": "wants a human"}))
	require.NoError(t, err)
	assert.Equal(t, HandoffTo("EscalationAgent", "wants a human"), d)

	_, err = decodeDecision(mustStruct(map[string]any{"kind": "dance"}))
	assert.ErrorIs(t, err, domain.ErrEngineFailure)
}
