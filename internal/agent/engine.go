package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/tools"
)

// Engine is the reasoning capability. Given the active agent and the turn so
// far it returns exactly one decision: a final answer, a tool call, or a
// handoff. Implementations must not mutate the session.
type Engine interface {
	Decide(ctx context.Context, req DecisionRequest) (Decision, error)
	Name() string
	Close() error
}

// DecisionRequest is everything an engine sees for one step of a turn.
type DecisionRequest struct {
	Agent *Definition
	// Session is read-only context.
	Session *domain.Session
	// History is the recent conversation, ending with the current utterance.
	History   []domain.Message
	Utterance string
	// Outcomes are the tool calls already executed under Agent during this turn.
	Outcomes []ToolOutcome
	// HandoffFrom is set when Agent was entered through a handoff this turn.
	HandoffFrom   string
	HandoffReason string
}

// ToolOutcome pairs an executed call with its result.
type ToolOutcome struct {
	Call   tools.Call
	Result tools.Result
}

// DecisionKind tags a Decision.
type DecisionKind int

const (
	DecisionFinal DecisionKind = iota
	DecisionToolCall
	DecisionHandoff
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionFinal:
		return "final"
	case DecisionToolCall:
		return "tool_call"
	case DecisionHandoff:
		return "handoff"
	default:
		return fmt.Sprintf("DecisionKind(%d)", int(k))
	}
}

// Decision is an engine's answer for one step.
type Decision struct {
	Kind DecisionKind
	// Text is the reply for DecisionFinal.
	Text string
	// Call is the requested invocation for DecisionToolCall.
	Call tools.Call
	// Target and Reason describe a DecisionHandoff.
	Target string
	Reason string
}

// Final answers the turn.
func Final(text string) Decision {
	return Decision{Kind: DecisionFinal, Text: text}
}

// CallTool requests a tool invocation.
func CallTool(call tools.Call) Decision {
	return Decision{Kind: DecisionToolCall, Call: call}
}

// HandoffTo transfers the turn to another agent.
func HandoffTo(target, reason string) Decision {
	return Decision{Kind: DecisionHandoff, Target: target, Reason: reason}
}

// handoffToolPrefix names the synthetic function a model calls to hand off.
const handoffToolPrefix = "transfer_to_"

func handoffToolName(target string) string {
	return handoffToolPrefix + target
}

// Payload returns the JSON-ready view of a tool result.
func Payload(res tools.Result) any {
	switch r := res.(type) {
	case tools.GoalAnalysis:
		return r.Goal
	case tools.MealPlanResult:
		return struct {
			DietPreferences string `json:"diet_preferences"`
			domain.MealPlan
		}{r.Preferences, r.Plan}
	case tools.WorkoutPlanResult:
		return r.Plan
	case tools.CheckinResult:
		return r.Status
	case tools.ProgressResult:
		return r.Update
	default:
		panic(fmt.Sprintf("agent: unhandled tool result %T", res))
	}
}

// PayloadJSON renders a tool result for a model's tool message.
func PayloadJSON(res tools.Result) string {
	data, err := json.Marshal(Payload(res))
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// PayloadMap renders a tool result as a generic object.
func PayloadMap(res tools.Result) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(PayloadJSON(res)), &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

// systemPrompt is the instruction block sent to model-backed engines.
func systemPrompt(req DecisionRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Agent.Instructions))
	if req.HandoffFrom != "" {
		fmt.Fprintf(&b, "\n\nThis conversation was transferred to you by %s.", req.HandoffFrom)
		if req.HandoffReason != "" {
			fmt.Fprintf(&b, " Reason: %s", req.HandoffReason)
		}
	}
	if ctx := sessionContext(req.Session); ctx != "" {
		b.WriteString("\n\nKnown about this user:\n")
		b.WriteString(ctx)
	}
	return b.String()
}

func sessionContext(s *domain.Session) string {
	if s == nil {
		return ""
	}
	var lines []string
	if s.Name != "" {
		lines = append(lines, "- name: "+s.Name)
	}
	if s.Goal != nil {
		lines = append(lines, fmt.Sprintf("- goal: %s (%g %s over %s, %s)",
			s.Goal.Category, s.Goal.Quantity, s.Goal.Unit, s.Goal.Duration, s.Goal.Difficulty))
	}
	if s.DietPreferences != "" {
		lines = append(lines, "- diet preferences: "+s.DietPreferences)
	}
	if s.WorkoutPlan != nil {
		lines = append(lines, fmt.Sprintf("- workout plan: %s, %s intensity", s.WorkoutPlan.Kind, s.WorkoutPlan.Intensity))
	}
	if s.InjuryNotes != "" {
		lines = append(lines, "- injury notes: "+s.InjuryNotes)
	}
	if n := len(s.ProgressLogs); n > 0 {
		lines = append(lines, fmt.Sprintf("- progress entries: %d", n))
	}
	return strings.Join(lines, "\n")
}

// stringArgs flattens decoded JSON arguments into the string map tools take.
func stringArgs(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
