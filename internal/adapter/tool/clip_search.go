package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/blevesearch/bleve"
)

const (
	defaultTopK = 5
	maxTopK     = 20
)

type clipDoc struct {
	Overview string `json:"overview"`
}

// ClipSearchTool ranks clips by full-text relevance of their captions.
type ClipSearchTool struct {
	store output.SegmentStore
	index bleve.Index
}

func NewClipSearchTool(store output.SegmentStore) (*ClipSearchTool, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("tool.NewClipSearchTool: %w", err)
	}

	batch := index.NewBatch()
	for _, c := range store.Overview() {
		if err := batch.Index(strconv.Itoa(c.Index), clipDoc{Overview: c.Overview}); err != nil {
			return nil, fmt.Errorf("tool.NewClipSearchTool: clip %d: %w", c.Index, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("tool.NewClipSearchTool: %w", err)
	}

	return &ClipSearchTool{store: store, index: index}, nil
}

func (t *ClipSearchTool) Definition() entity.ToolDefinition {
	return entity.ToolDefinition{
		Name:        entity.ToolClipSearch,
		Granularity: entity.GranularityGlobal,
		Description: "Keyword search over clip captions. Returns the best matching clips, most relevant first.",
		Params: []entity.ParamSpec{
			{Name: "query", Type: entity.ParamString, Required: true, Description: "Words describing what to find, e.g. 'red car parking'."},
			{Name: "top_k", Type: entity.ParamInteger, Description: fmt.Sprintf("Number of clips to return (default %d, max %d).", defaultTopK, maxTopK)},
		},
		Output: "ranked clip indices with time ranges and captions",
	}
}

func (t *ClipSearchTool) Execute(ctx context.Context, args json.RawMessage) (entity.ToolOutput, error) {
	var input struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return entity.ToolOutput{}, err
	}
	if strings.TrimSpace(input.Query) == "" {
		return entity.ToolOutput{}, &entity.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if input.TopK <= 0 {
		input.TopK = defaultTopK
	}
	if input.TopK > maxTopK {
		input.TopK = maxTopK
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(input.Query), input.TopK, 0, false)
	res, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return entity.ToolOutput{}, fmt.Errorf("tool.ClipSearchTool.Execute: %w", err)
	}

	if len(res.Hits) == 0 {
		return entity.ToolOutput{Text: fmt.Sprintf("No clips matched %q. Try other words or global_browse.", input.Query)}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Top %d clips for %q:\n", len(res.Hits), input.Query))
	indices := make([]int, 0, len(res.Hits))
	for rank, hit := range res.Hits {
		idx, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		clip, err := t.store.Clip(idx)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("%d. [clip %d] %s (score %.2f): %s\n",
			rank+1, idx, clip.Range, hit.Score, shorten(clip.Overview, defaultCaptionLen)))
		indices = append(indices, idx)
	}

	return entity.ToolOutput{
		Text:       strings.TrimRight(sb.String(), "\n"),
		Provenance: entity.Provenance{ClipIndices: indices},
	}, nil
}
