package entity

import "encoding/json"

type DecisionKind string

const (
	DecisionInvokeTool DecisionKind = "invoke_tool"
	DecisionReflect    DecisionKind = "reflect"
	DecisionTerminate  DecisionKind = "terminate"
)

// PlanDecision is the planner's output for one iteration. Exactly one of the
// variant payloads is meaningful, selected by Kind.
type PlanDecision struct {
	Kind DecisionKind

	Tool ToolName
	Args json.RawMessage

	Summary string

	Answer        string
	Justification string
	Citations     []int

	// Raw is the unparsed planner text, kept for logs and failure reports.
	Raw string
}

func InvokeTool(name ToolName, args json.RawMessage) PlanDecision {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return PlanDecision{Kind: DecisionInvokeTool, Tool: name, Args: args}
}

func Reflect(summary string) PlanDecision {
	return PlanDecision{Kind: DecisionReflect, Summary: summary}
}

func Terminate(answer, justification string, citations []int) PlanDecision {
	return PlanDecision{Kind: DecisionTerminate, Answer: answer, Justification: justification, Citations: citations}
}
