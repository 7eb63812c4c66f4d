package segmentstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

// DatabaseFile is the per-video database.json written by the preparation pipeline.
type DatabaseFile struct {
	VideoID       string         `json:"video_id"`
	VideoFileRoot string         `json:"video_file_root"`
	Duration      float64        `json:"duration"`
	FPS           float64        `json:"fps"`
	Clips         []DatabaseClip `json:"clips"`
}

type DatabaseClip struct {
	ClipIndex    int             `json:"clip_index"`
	StartTime    float64         `json:"start_time"`
	EndTime      float64         `json:"end_time"`
	OverviewText string          `json:"overview_text"`
	FrameRefs    []DatabaseFrame `json:"frame_refs,omitempty"`
}

type DatabaseFrame struct {
	Timestamp   float64 `json:"timestamp"`
	Path        string  `json:"path"`
	Description string  `json:"description,omitempty"`
}

// LoadVideo reads and validates a database.json file.
func LoadVideo(path string) (*entity.Video, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("segmentstore.LoadVideo: %s: %w", path, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("segmentstore.LoadVideo: %w", err)
	}

	var db DatabaseFile
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("segmentstore.LoadVideo: parse %s: %w", path, err)
	}

	if db.VideoID == "" {
		db.VideoID = filepath.Base(filepath.Dir(path))
	}
	if db.VideoFileRoot == "" {
		db.VideoFileRoot = filepath.Dir(path)
	}

	video, err := db.ToVideo()
	if err != nil {
		return nil, fmt.Errorf("segmentstore.LoadVideo: %s: %w", path, err)
	}
	return video, nil
}

// ToVideo converts the file form into the domain model. Clips must be
// ordered by index starting at 0. Clips without explicit frame refs get refs
// derived from FPS and the frames_n%06d.jpg naming of the frame decoder.
func (db DatabaseFile) ToVideo() (*entity.Video, error) {
	if len(db.Clips) == 0 {
		return nil, &entity.ValidationError{Field: "clips", Reason: "video has no clips"}
	}

	video := &entity.Video{
		ID:       db.VideoID,
		Duration: db.Duration,
		FPS:      db.FPS,
		Clips:    make([]entity.Clip, 0, len(db.Clips)),
	}

	for i, c := range db.Clips {
		if c.ClipIndex != i {
			return nil, &entity.ValidationError{Field: "clip_index", Reason: fmt.Sprintf("clip %d found at position %d", c.ClipIndex, i)}
		}
		rng := entity.TimeRange{Start: c.StartTime, End: c.EndTime}
		if err := rng.Validate(); err != nil {
			return nil, fmt.Errorf("clip %d: %w", c.ClipIndex, err)
		}

		clip := entity.Clip{
			Index:    c.ClipIndex,
			Range:    rng,
			Overview: c.OverviewText,
		}
		if len(c.FrameRefs) > 0 {
			for _, f := range c.FrameRefs {
				clip.FrameRefs = append(clip.FrameRefs, entity.FrameRef{
					Timestamp:   f.Timestamp,
					Path:        db.resolve(f.Path),
					Description: f.Description,
				})
			}
		} else {
			clip.FrameRefs = db.deriveFrames(rng)
		}
		video.Clips = append(video.Clips, clip)
	}

	if video.Duration <= 0 {
		video.Duration = video.Clips[len(video.Clips)-1].Range.End
	}
	return video, nil
}

func (db DatabaseFile) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(db.VideoFileRoot, path)
}

// Frame n (1-based) sits at (n-1)/fps seconds.
func (db DatabaseFile) deriveFrames(rng entity.TimeRange) []entity.FrameRef {
	if db.FPS <= 0 {
		return nil
	}
	first := int(math.Ceil(rng.Start*db.FPS-1e-9)) + 1
	var refs []entity.FrameRef
	for n := first; ; n++ {
		ts := float64(n-1) / db.FPS
		if ts >= rng.End {
			break
		}
		refs = append(refs, entity.FrameRef{
			Timestamp: ts,
			Path:      filepath.Join(db.VideoFileRoot, "frames", fmt.Sprintf("frames_n%06d.jpg", n)),
		})
	}
	return refs
}
