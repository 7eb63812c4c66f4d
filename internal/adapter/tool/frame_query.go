package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type FrameQueryTool struct {
	store    output.SegmentStore
	answerer output.Answerer
}

func NewFrameQueryTool(store output.SegmentStore, answerer output.Answerer) *FrameQueryTool {
	return &FrameQueryTool{store: store, answerer: answerer}
}

func (t *FrameQueryTool) Definition() entity.ToolDefinition {
	return entity.ToolDefinition{
		Name:        entity.ToolFrameQuery,
		Granularity: entity.GranularityFrame,
		Description: "Fine-grained descriptions of the frames of one clip between start and end seconds (clamped to the clip). Use for exact visual detail such as counts, colours or text on screen.",
		Params: []entity.ParamSpec{
			{Name: "clip_index", Type: entity.ParamInteger, Required: true, Description: "Clip to inspect."},
			{Name: "start", Type: entity.ParamNumber, Required: true, Description: "Start of the range in seconds from the video start."},
			{Name: "end", Type: entity.ParamNumber, Required: true, Description: "End of the range in seconds, exclusive."},
			{Name: "query", Type: entity.ParamString, Description: "Optional question answered from the frame descriptions."},
		},
		Output: "timestamped frame descriptions, plus an answer when query is set",
	}
}

func (t *FrameQueryTool) Execute(ctx context.Context, args json.RawMessage) (entity.ToolOutput, error) {
	var input struct {
		ClipIndex int     `json:"clip_index"`
		Start     float64 `json:"start"`
		End       float64 `json:"end"`
		Query     string  `json:"query"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return entity.ToolOutput{}, err
	}

	frames, err := t.store.Frames(ctx, input.ClipIndex, entity.TimeRange{Start: input.Start, End: input.End})
	if err != nil {
		return entity.ToolOutput{}, err
	}

	prov := entity.Provenance{
		ClipIndices:     []int{input.ClipIndex},
		FrameTimestamps: frameTimestamps(frames),
	}
	if len(frames) == 0 {
		return entity.ToolOutput{
			Text:       fmt.Sprintf("Clip %d has no decoded frames between %s and %s.", input.ClipIndex, entity.FormatTimestamp(input.Start), entity.FormatTimestamp(input.End)),
			Provenance: prov,
		}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Clip %d, %d frames:\n", input.ClipIndex, len(frames)))
	sb.WriteString(frameLines(frames))

	if input.Query != "" && t.answerer != nil {
		answer, err := t.answerer.Answer(ctx, input.Query, sb.String())
		if err != nil {
			return entity.ToolOutput{}, err
		}
		sb.WriteString("\n\nAnswer: ")
		sb.WriteString(answer)
	}

	return entity.ToolOutput{Text: sb.String(), Provenance: prov}, nil
}
