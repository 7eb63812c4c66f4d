package tool

import (
	"fmt"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
)

type Deps struct {
	// Answerer is optional; without it clip_query returns the raw evidence.
	Answerer   output.Answerer
	Logger     output.LoggerPort
	CaptionLen int
}

// RegisterVideoTools registers the video tools bound to store, coarse to fine.
func RegisterVideoTools(registry output.ToolRegistry, store output.SegmentStore, deps Deps) error {
	search, err := NewClipSearchTool(store)
	if err != nil {
		return err
	}

	tools := []output.ToolPort{
		NewGlobalBrowseTool(store, deps.CaptionLen),
		search,
		NewClipQueryTool(store, deps.Answerer, deps.Logger),
		NewFrameQueryTool(store, deps.Answerer),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("tool.RegisterVideoTools: %w", err)
		}
	}
	return nil
}
