package output

import (
	"context"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type PlannerInput struct {
	Question string
	Tools    []entity.ToolDefinition
	// Context is the rendered observation memory.
	Context string
	// Notes carry validation errors from rejected attempts in this planning step.
	Notes     []string
	ToolCalls int
	Remaining int
}

type SummaryInput struct {
	Question string
	Context  string
}

type Planner interface {
	Decide(ctx context.Context, in PlannerInput) (entity.PlanDecision, error)
	Summarize(ctx context.Context, in SummaryInput) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, criteria entity.SynthesisCriteria) (*entity.SynthesisResult, error)
}
