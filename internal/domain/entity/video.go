package entity

import (
	"fmt"
	"math"
)

type Video struct {
	ID       string
	Duration float64
	FPS      float64
	Clips    []Clip
}

type Clip struct {
	Index     int
	Range     TimeRange
	Overview  string
	FrameRefs []FrameRef
}

// FrameRef points at a decoded frame on disk. Description is set when the
// preparation pipeline already captioned the frame.
type FrameRef struct {
	Timestamp   float64
	Path        string
	Description string
}

type Frame struct {
	ClipIndex   int
	Index       int
	Timestamp   float64
	Path        string
	Description string
}

type ClipSummary struct {
	Index    int
	Range    TimeRange
	Overview string
}

func (c Clip) Summary() ClipSummary {
	return ClipSummary{Index: c.Index, Range: c.Range, Overview: c.Overview}
}

// TimeRange is a half-open interval [Start, End) in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r TimeRange) Validate() error {
	if math.IsNaN(r.Start) || math.IsNaN(r.End) {
		return &ValidationError{Field: "time_range", Reason: "NaN bound"}
	}
	if r.Start < 0 {
		return &ValidationError{Field: "start", Reason: "must be >= 0"}
	}
	if r.End <= r.Start {
		return &ValidationError{Field: "end", Reason: "must be greater than start"}
	}
	return nil
}

func (r TimeRange) Contains(t float64) bool {
	return t >= r.Start && t < r.End
}

func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Clamp returns the intersection of r and bounds. ok is false when they do not overlap.
func (r TimeRange) Clamp(bounds TimeRange) (TimeRange, bool) {
	if !r.Overlaps(bounds) {
		return TimeRange{}, false
	}
	return TimeRange{Start: math.Max(r.Start, bounds.Start), End: math.Min(r.End, bounds.End)}, true
}

func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%s-%s", FormatTimestamp(r.Start), FormatTimestamp(r.End))
}

// FormatTimestamp renders seconds as HH:MM:SS, dropping the hour part for short offsets.
func FormatTimestamp(sec float64) string {
	total := int(sec)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
