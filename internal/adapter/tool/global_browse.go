package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

const defaultCaptionLen = 240

type GlobalBrowseTool struct {
	store      output.SegmentStore
	captionLen int
}

func NewGlobalBrowseTool(store output.SegmentStore, captionLen int) *GlobalBrowseTool {
	if captionLen <= 0 {
		captionLen = defaultCaptionLen
	}
	return &GlobalBrowseTool{store: store, captionLen: captionLen}
}

func (t *GlobalBrowseTool) Definition() entity.ToolDefinition {
	return entity.ToolDefinition{
		Name:        entity.ToolGlobalBrowse,
		Granularity: entity.GranularityGlobal,
		Description: "Condensed overview of the whole video: one line per clip with its time range and a shortened caption. Use it first to find where things happen.",
		Params: []entity.ParamSpec{
			{Name: "query", Type: entity.ParamString, Description: "What you are looking for. Echoed back for reference."},
		},
		Output: "video duration, clip count and one line per clip",
	}
}

func (t *GlobalBrowseTool) Execute(ctx context.Context, args json.RawMessage) (entity.ToolOutput, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return entity.ToolOutput{}, err
	}

	overview := t.store.Overview()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Video %s, duration %s, %d clips.\n",
		t.store.VideoID(), entity.FormatTimestamp(t.store.Duration()), len(overview)))
	if input.Query != "" {
		sb.WriteString(fmt.Sprintf("Looking for: %s\n", input.Query))
	}

	indices := make([]int, 0, len(overview))
	for _, c := range overview {
		sb.WriteString(fmt.Sprintf("[clip %d] %s: %s\n", c.Index, c.Range, shorten(c.Overview, t.captionLen)))
		indices = append(indices, c.Index)
	}

	return entity.ToolOutput{
		Text:       strings.TrimRight(sb.String(), "\n"),
		Provenance: entity.Provenance{ClipIndices: indices},
	}, nil
}
