package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type rawDecision struct {
	Action        string          `json:"action"`
	Tool          string          `json:"tool"`
	Args          json.RawMessage `json:"args"`
	Arguments     json.RawMessage `json:"arguments"`
	Summary       string          `json:"summary"`
	Answer        string          `json:"answer"`
	Justification string          `json:"justification"`
	Citations     []int           `json:"citations"`
}

// ParseDecision turns a model reply into a decision. Native tool calls win
// over text; text must contain a JSON decision object.
func ParseDecision(msg entity.Message) (entity.PlanDecision, error) {
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		args := json.RawMessage(strings.TrimSpace(tc.Arguments))
		if len(args) > 0 && !json.Valid(args) {
			return entity.PlanDecision{}, fmt.Errorf("%w: arguments of %s are not valid JSON", entity.ErrMalformedDecision, tc.Name)
		}
		d := entity.InvokeTool(entity.ToolName(tc.Name), args)
		d.Raw = fmt.Sprintf("%s(%s)", tc.Name, string(d.Args))
		return d, nil
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return entity.PlanDecision{}, fmt.Errorf("%w: empty reply", entity.ErrMalformedDecision)
	}

	obj, ok := extractJSONObject(text)
	if !ok {
		return entity.PlanDecision{}, fmt.Errorf("%w: no JSON object in reply", entity.ErrMalformedDecision)
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return entity.PlanDecision{}, fmt.Errorf("%w: %v", entity.ErrMalformedDecision, err)
	}

	d, err := raw.toDecision()
	if err != nil {
		return entity.PlanDecision{}, err
	}
	d.Raw = text
	return d, nil
}

func (r rawDecision) toDecision() (entity.PlanDecision, error) {
	action := strings.ToLower(strings.TrimSpace(r.Action))
	if action == "" {
		switch {
		case r.Tool != "":
			action = "invoke_tool"
		case r.Answer != "":
			action = "terminate"
		case r.Summary != "":
			action = "reflect"
		}
	}

	switch action {
	case "invoke_tool", "tool", "call", "call_tool":
		if r.Tool == "" {
			return entity.PlanDecision{}, fmt.Errorf("%w: invoke_tool without tool name", entity.ErrMalformedDecision)
		}
		args := r.Args
		if len(args) == 0 {
			args = r.Arguments
		}
		return entity.InvokeTool(entity.ToolName(r.Tool), args), nil
	case "reflect":
		if strings.TrimSpace(r.Summary) == "" {
			return entity.PlanDecision{}, fmt.Errorf("%w: reflect without summary", entity.ErrMalformedDecision)
		}
		return entity.Reflect(r.Summary), nil
	case "terminate", "answer", "finish", "final_answer":
		if strings.TrimSpace(r.Answer) == "" {
			return entity.PlanDecision{}, fmt.Errorf("%w: terminate without answer", entity.ErrMalformedDecision)
		}
		return entity.Terminate(r.Answer, r.Justification, r.Citations), nil
	default:
		return entity.PlanDecision{}, fmt.Errorf("%w: unknown action %q", entity.ErrMalformedDecision, r.Action)
	}
}

// extractJSONObject returns the first balanced {...} block, honouring
// string literals so braces inside answers do not end the object early.
func extractJSONObject(s string) (string, bool) {
	for start := strings.Index(s, "{"); start >= 0; {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, true
					}
					i = len(s)
				}
			}
		}
		next := strings.Index(s[start+1:], "{")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
