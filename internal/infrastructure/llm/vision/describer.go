package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/disintegration/imaging"
)

var _ output.FrameDescriber = (*Describer)(nil)

const (
	defaultMaxSide = 768
	jpegQuality    = 85
)

// Describer captions single frames with a vision-capable chat model.
type Describer struct {
	llm     output.LLMPort
	logger  output.LoggerPort
	prompt  string
	maxSide int
}

func NewDescriber(llm output.LLMPort, logger output.LoggerPort, prompt string, maxSide int) *Describer {
	if maxSide <= 0 {
		maxSide = defaultMaxSide
	}
	return &Describer{
		llm:     llm,
		logger:  logger,
		prompt:  prompt,
		maxSide: maxSide,
	}
}

func (d *Describer) Describe(ctx context.Context, frame entity.Frame) (string, error) {
	dataURL, err := d.encodeFrame(frame.Path)
	if err != nil {
		return "", fmt.Errorf("vision.Describer.Describe: %w", err)
	}

	resp, err := d.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: d.prompt},
			{
				Role:    entity.RoleUser,
				Content: fmt.Sprintf("Frame at %s.", entity.FormatTimestamp(frame.Timestamp)),
				Images:  []string{dataURL},
			},
		},
		Temperature: 0.0,
	})
	if err != nil {
		return "", fmt.Errorf("vision.Describer.Describe: %w", err)
	}

	desc := strings.TrimSpace(resp.Message.Content)
	if desc == "" {
		return "", fmt.Errorf("vision.Describer.Describe: empty description for %s: %w", frame.Path, entity.ErrTransient)
	}

	d.logger.Debug("Frame described", "clip", frame.ClipIndex, "timestamp", frame.Timestamp, "length", len(desc))
	return desc, nil
}

// encodeFrame downsizes the image so its longer side fits maxSide and
// returns it as a base64 JPEG data URL.
func (d *Describer) encodeFrame(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open frame %s: %w", path, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > d.maxSide || bounds.Dy() > d.maxSide {
		img = imaging.Fit(img, d.maxSide, d.maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode frame %s: %w", path, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
