package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

// ToolRegistryImpl keeps tools in registration order so the planner always
// sees the same catalog.
type ToolRegistryImpl struct {
	mu    sync.RWMutex
	order []entity.ToolName
	tools map[entity.ToolName]output.ToolPort
}

func NewToolRegistry() *ToolRegistryImpl {
	return &ToolRegistryImpl{
		tools: make(map[entity.ToolName]output.ToolPort),
	}
}

func (r *ToolRegistryImpl) Register(tool output.ToolPort) error {
	def := tool.Definition()
	if def.Name == "" {
		return fmt.Errorf("service.ToolRegistry.Register: %w", &entity.ValidationError{Field: "name", Reason: "empty tool name"})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("service.ToolRegistry.Register: %w", &entity.ValidationError{Field: "name", Reason: fmt.Sprintf("tool %s already registered", def.Name)})
	}
	r.tools[def.Name] = tool
	r.order = append(r.order, def.Name)
	return nil
}

func (r *ToolRegistryImpl) Get(name entity.ToolName) (output.ToolPort, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *ToolRegistryImpl) List() []entity.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]entity.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name].Definition())
	}
	return result
}

func (r *ToolRegistryImpl) Validate(name entity.ToolName, args json.RawMessage) error {
	tool, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("service.ToolRegistry.Validate: tool %q: %w", name, entity.ErrNotFound)
	}
	if err := ValidateArgs(tool.Definition(), args); err != nil {
		return fmt.Errorf("service.ToolRegistry.Validate: %w", err)
	}
	return nil
}

// Invoke validates args before the tool runs. Failures are wrapped in
// entity.ToolError so callers can read the classified kind.
func (r *ToolRegistryImpl) Invoke(ctx context.Context, name entity.ToolName, args json.RawMessage) (entity.ToolOutput, error) {
	if err := r.Validate(name, args); err != nil {
		return entity.ToolOutput{}, &entity.ToolError{Tool: string(name), Kind: entity.ClassifyError(err), Err: err}
	}

	tool, _ := r.Get(name)
	out, err := tool.Execute(ctx, args)
	if err != nil {
		return entity.ToolOutput{}, &entity.ToolError{Tool: string(name), Kind: entity.ClassifyError(err), Err: err}
	}
	return out, nil
}
