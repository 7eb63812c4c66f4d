package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"golang.org/x/sync/errgroup"
)

const maxClipsPerQuery = 4

// ClipQueryTool asks a focused question about up to four clips at once.
// Clips are inspected concurrently and joined before the output is built.
type ClipQueryTool struct {
	store    output.SegmentStore
	answerer output.Answerer
	logger   output.LoggerPort
}

func NewClipQueryTool(store output.SegmentStore, answerer output.Answerer, logger output.LoggerPort) *ClipQueryTool {
	return &ClipQueryTool{store: store, answerer: answerer, logger: logger}
}

func (t *ClipQueryTool) Definition() entity.ToolDefinition {
	return entity.ToolDefinition{
		Name:        entity.ToolClipQuery,
		Granularity: entity.GranularityClip,
		Description: fmt.Sprintf("Ask a question about specific clips (at most %d per call). Set include_frames to add frame-level descriptions to the evidence.", maxClipsPerQuery),
		Params: []entity.ParamSpec{
			{Name: "clip_indices", Type: entity.ParamIntegerArray, Description: "Clip indices to inspect."},
			{Name: "clip_index", Type: entity.ParamInteger, Description: "Single clip index, alternative to clip_indices."},
			{Name: "question", Type: entity.ParamString, Required: true, Description: "Focused question to answer for each clip."},
			{Name: "include_frames", Type: entity.ParamBoolean, Description: "Describe the clip's frames as extra evidence. Slower."},
		},
		Output: "one answer per clip, with its time range",
	}
}

type clipQueryArgs struct {
	ClipIndices   []int  `json:"clip_indices"`
	ClipIndex     *int   `json:"clip_index"`
	Question      string `json:"question"`
	IncludeFrames bool   `json:"include_frames"`
}

func (a clipQueryArgs) indices() ([]int, error) {
	all := append([]int(nil), a.ClipIndices...)
	if a.ClipIndex != nil {
		all = append(all, *a.ClipIndex)
	}

	seen := make(map[int]bool, len(all))
	out := make([]int, 0, len(all))
	for _, idx := range all {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}

	switch {
	case len(out) == 0:
		return nil, &entity.ValidationError{Field: "clip_indices", Reason: "give clip_indices or clip_index"}
	case len(out) > maxClipsPerQuery:
		return nil, &entity.ValidationError{Field: "clip_indices", Reason: fmt.Sprintf("at most %d clips per call, got %d", maxClipsPerQuery, len(out))}
	}
	return out, nil
}

type clipAnswer struct {
	clip       entity.Clip
	text       string
	timestamps []float64
}

func (t *ClipQueryTool) Execute(ctx context.Context, args json.RawMessage) (entity.ToolOutput, error) {
	var input clipQueryArgs
	if err := decodeArgs(args, &input); err != nil {
		return entity.ToolOutput{}, err
	}
	if strings.TrimSpace(input.Question) == "" {
		return entity.ToolOutput{}, &entity.ValidationError{Field: "question", Reason: "must not be empty"}
	}
	indices, err := input.indices()
	if err != nil {
		return entity.ToolOutput{}, err
	}

	clips := make([]entity.Clip, len(indices))
	for i, idx := range indices {
		clip, err := t.store.Clip(idx)
		if err != nil {
			return entity.ToolOutput{}, err
		}
		clips[i] = clip
	}

	answers := make([]clipAnswer, len(clips))
	g, gctx := errgroup.WithContext(ctx)
	for i, clip := range clips {
		i, clip := i, clip
		g.Go(func() error {
			ans, err := t.queryClip(gctx, clip, input.Question, input.IncludeFrames)
			if err != nil {
				return fmt.Errorf("clip %d: %w", clip.Index, err)
			}
			answers[i] = ans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return entity.ToolOutput{}, err
	}

	var sb strings.Builder
	prov := entity.Provenance{}
	for _, ans := range answers {
		sb.WriteString(fmt.Sprintf("## Clip %d (%s)\n%s\n\n", ans.clip.Index, ans.clip.Range, ans.text))
		prov.ClipIndices = append(prov.ClipIndices, ans.clip.Index)
		prov.FrameTimestamps = append(prov.FrameTimestamps, ans.timestamps...)
	}
	sort.Float64s(prov.FrameTimestamps)

	return entity.ToolOutput{
		Text:       strings.TrimRight(sb.String(), "\n"),
		Provenance: prov,
	}, nil
}

func (t *ClipQueryTool) queryClip(ctx context.Context, clip entity.Clip, question string, includeFrames bool) (clipAnswer, error) {
	var evidence strings.Builder
	evidence.WriteString(fmt.Sprintf("Clip %d, %s.\nOverview: %s\n", clip.Index, clip.Range, clip.Overview))

	var timestamps []float64
	if includeFrames {
		frames, err := t.store.Frames(ctx, clip.Index, clip.Range)
		if err != nil {
			return clipAnswer{}, err
		}
		if len(frames) > 0 {
			evidence.WriteString("Frames:\n")
			evidence.WriteString(frameLines(frames))
			evidence.WriteString("\n")
		}
		timestamps = frameTimestamps(frames)
	}

	if t.answerer == nil {
		return clipAnswer{clip: clip, text: strings.TrimSpace(evidence.String()), timestamps: timestamps}, nil
	}

	answer, err := t.answerer.Answer(ctx, question, evidence.String())
	if err != nil {
		return clipAnswer{}, err
	}
	if t.logger != nil {
		t.logger.Debug("Clip answered", "clip", clip.Index, "frames", len(timestamps), "length", len(answer))
	}
	return clipAnswer{clip: clip, text: answer, timestamps: timestamps}, nil
}
