package output

import (
	"context"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type ProgressPort interface {
	ShowIteration(ctx context.Context, iteration, maxIterations int)
	ShowToolStart(ctx context.Context, tool entity.ToolName, arguments string)
	ShowToolResult(ctx context.Context, tool entity.ToolName, result string, isError bool)
	ShowReflection(ctx context.Context, note string)
	ShowAnswer(ctx context.Context, result entity.SessionResult)
}
