package output

import (
	"context"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

// SegmentStore gives read access to one segmented video. Implementations are
// safe for concurrent use by several sessions.
type SegmentStore interface {
	VideoID() string
	Duration() float64
	ClipCount() int
	Overview() []entity.ClipSummary
	Clip(index int) (entity.Clip, error)
	Frames(ctx context.Context, clipIndex int, rng entity.TimeRange) ([]entity.Frame, error)
}

// FrameDescriber turns a decoded frame into text. Descriptions must not
// depend on the question so they can be cached per frame.
type FrameDescriber interface {
	Describe(ctx context.Context, frame entity.Frame) (string, error)
}

// FrameCache is a shared description cache keyed by video, clip and timestamp.
type FrameCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, description string) error
}

// Answerer answers a focused question from textual evidence.
type Answerer interface {
	Answer(ctx context.Context, question, evidence string) (string, error)
}
