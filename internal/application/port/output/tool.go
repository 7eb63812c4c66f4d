package output

import (
	"context"
	"encoding/json"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

// ToolPort is a single video-inspection operation. Execute receives arguments
// that the registry has already validated against Definition().Params.
type ToolPort interface {
	Definition() entity.ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (entity.ToolOutput, error)
}

type ToolRegistry interface {
	Register(tool ToolPort) error
	Get(name entity.ToolName) (ToolPort, bool)
	List() []entity.ToolDefinition
	Validate(name entity.ToolName, args json.RawMessage) error
	Invoke(ctx context.Context, name entity.ToolName, args json.RawMessage) (entity.ToolOutput, error)
}

// ToolsetFactory builds the registry bound to one video for one session.
type ToolsetFactory func(store SegmentStore) (ToolRegistry, error)
