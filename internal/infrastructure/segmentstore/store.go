package segmentstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var _ output.SegmentStore = (*Store)(nil)

const (
	defaultConcurrency     = 4
	defaultMaxFrames       = 16
	defaultDescribeTimeout = 2 * time.Minute
)

var errNoDescriber = errors.New("no frame describer configured")

type Options struct {
	Describer output.FrameDescriber
	// Cache is optional and shared between processes.
	Cache  output.FrameCache
	Logger output.LoggerPort
	// Concurrency bounds parallel describer calls inside one Frames call.
	Concurrency int
	// MaxFrames caps the frames returned per call; larger ranges are sampled evenly.
	MaxFrames int
	// DescribeTimeout bounds one shared frame description, independent of
	// the callers waiting for it.
	DescribeTimeout time.Duration
}

// Store serves one video. Clip data is immutable; frame descriptions are
// computed lazily and kept for the lifetime of the store.
type Store struct {
	video       *entity.Video
	describer   output.FrameDescriber
	cache       output.FrameCache
	logger      output.LoggerPort
	concurrency int
	maxFrames   int
	timeout     time.Duration

	mu           sync.RWMutex
	descriptions map[string]string
	group        singleflight.Group
}

func New(video *entity.Video, opts Options) *Store {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = defaultMaxFrames
	}
	if opts.DescribeTimeout <= 0 {
		opts.DescribeTimeout = defaultDescribeTimeout
	}
	return &Store{
		video:        video,
		describer:    opts.Describer,
		cache:        opts.Cache,
		logger:       opts.Logger,
		concurrency:  opts.Concurrency,
		maxFrames:    opts.MaxFrames,
		timeout:      opts.DescribeTimeout,
		descriptions: make(map[string]string),
	}
}

func (s *Store) VideoID() string {
	return s.video.ID
}

func (s *Store) Duration() float64 {
	return s.video.Duration
}

func (s *Store) ClipCount() int {
	return len(s.video.Clips)
}

func (s *Store) Overview() []entity.ClipSummary {
	out := make([]entity.ClipSummary, 0, len(s.video.Clips))
	for _, c := range s.video.Clips {
		out = append(out, c.Summary())
	}
	return out
}

func (s *Store) Clip(index int) (entity.Clip, error) {
	if index < 0 || index >= len(s.video.Clips) {
		return entity.Clip{}, fmt.Errorf("clip %d (video has %d clips): %w", index, len(s.video.Clips), entity.ErrNotFound)
	}
	return s.video.Clips[index], nil
}

// Frames returns described frames of a clip within rng, clamped to the clip
// bounds, in timestamp order.
func (s *Store) Frames(ctx context.Context, clipIndex int, rng entity.TimeRange) ([]entity.Frame, error) {
	clip, err := s.Clip(clipIndex)
	if err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	clamped, ok := rng.Clamp(clip.Range)
	if !ok {
		return nil, &entity.ValidationError{
			Field:  "start",
			Reason: fmt.Sprintf("range %s is outside clip %d (%s)", rng, clipIndex, clip.Range),
		}
	}

	// positions in clip.FrameRefs, which are the frames' indices within the clip
	var positions []int
	for i, ref := range clip.FrameRefs {
		if clamped.Contains(ref.Timestamp) {
			positions = append(positions, i)
		}
	}
	positions = sample(positions, s.maxFrames)

	frames := make([]entity.Frame, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, pos := range positions {
		i, pos := i, pos
		ref := clip.FrameRefs[pos]
		g.Go(func() error {
			desc, err := s.describe(gctx, clipIndex, ref)
			if err != nil {
				return err
			}
			frames[i] = entity.Frame{
				ClipIndex:   clipIndex,
				Index:       pos,
				Timestamp:   ref.Timestamp,
				Path:        ref.Path,
				Description: desc,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("segmentstore.Store.Frames: clip %d: %w", clipIndex, err)
	}
	return frames, nil
}

func (s *Store) describe(ctx context.Context, clipIndex int, ref entity.FrameRef) (string, error) {
	if ref.Description != "" {
		return ref.Description, nil
	}

	key := s.frameKey(clipIndex, ref.Timestamp)
	s.mu.RLock()
	desc, ok := s.descriptions[key]
	s.mu.RUnlock()
	if ok {
		return desc, nil
	}

	// Callers from other sessions may join this flight; it runs detached from
	// any one caller's cancellation and each caller waits on its own ctx.
	flight := s.group.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		// a flight for this key may have finished since the lookup above
		s.mu.RLock()
		desc, ok := s.descriptions[key]
		s.mu.RUnlock()
		if ok {
			return desc, nil
		}

		if s.cache != nil {
			cached, hit, err := s.cache.Get(ctx, key)
			if err != nil {
				s.logWarn("Frame cache read failed", "key", key, "error", err)
			} else if hit {
				s.remember(key, cached)
				return cached, nil
			}
		}

		if s.describer == nil {
			return "", errNoDescriber
		}
		desc, err := s.describer.Describe(ctx, entity.Frame{
			ClipIndex: clipIndex,
			Timestamp: ref.Timestamp,
			Path:      ref.Path,
		})
		if err != nil {
			return "", err
		}

		s.remember(key, desc)
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, desc); err != nil {
				s.logWarn("Frame cache write failed", "key", key, "error", err)
			}
		}
		return desc, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) remember(key, desc string) {
	s.mu.Lock()
	s.descriptions[key] = desc
	s.mu.Unlock()
}

// CachedDescriptions reports how many frames have been described so far.
func (s *Store) CachedDescriptions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.descriptions)
}

func (s *Store) frameKey(clipIndex int, ts float64) string {
	return fmt.Sprintf("%s:%d:%.3f", s.video.ID, clipIndex, ts)
}

func (s *Store) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// sample picks at most n items spread evenly across the input, keeping order.
func sample(items []int, n int) []int {
	if len(items) <= n {
		return items
	}
	out := make([]int, 0, n)
	step := float64(len(items)) / float64(n)
	for i := 0; i < n; i++ {
		out = append(out, items[int(float64(i)*step)])
	}
	return out
}
