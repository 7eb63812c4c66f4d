package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/logger"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLLM struct {
	requests []output.ChatRequest
	reply    string
	err      error
}

func (r *recordingLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: r.reply}}, nil
}

func writeFrame(t *testing.T, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	path := filepath.Join(t.TempDir(), "frames_n000001.jpg")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestDescriber_SendsDownscaledImage(t *testing.T) {
	llm := &recordingLLM{reply: "  an orange wall  "}
	d := NewDescriber(llm, logger.NewNop(), "describe", 64)

	desc, err := d.Describe(context.Background(), entity.Frame{ClipIndex: 1, Timestamp: 75, Path: writeFrame(t, 640, 320)})
	require.NoError(t, err)

	assert.Equal(t, "an orange wall", desc)
	require.Len(t, llm.requests, 1)
	user := llm.requests[0].Messages[1]
	assert.Equal(t, "Frame at 01:15.", user.Content)
	require.Len(t, user.Images, 1)
	assert.True(t, strings.HasPrefix(user.Images[0], "data:image/jpeg;base64,"))

	img, err := decodeDataURL(user.Images[0])
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestDescriber_MissingFile(t *testing.T) {
	d := NewDescriber(&recordingLLM{reply: "x"}, logger.NewNop(), "describe", 0)

	_, err := d.Describe(context.Background(), entity.Frame{Path: filepath.Join(t.TempDir(), "missing.jpg")})
	assert.Error(t, err)
}

func TestDescriber_EmptyReplyIsTransient(t *testing.T) {
	d := NewDescriber(&recordingLLM{reply: " "}, logger.NewNop(), "describe", 0)

	_, err := d.Describe(context.Background(), entity.Frame{Path: writeFrame(t, 10, 10)})
	assert.ErrorIs(t, err, entity.ErrTransient)
}

func TestAnswerer(t *testing.T) {
	llm := &recordingLLM{reply: "Two cows.\n"}
	a := NewAnswerer(llm, "answer from evidence")

	got, err := a.Answer(context.Background(), "How many cows?", "Clip 1: cows graze")
	require.NoError(t, err)

	assert.Equal(t, "Two cows.", got)
	assert.Contains(t, llm.requests[0].Messages[1].Content, "Question: How many cows?")

	llm.err = errors.New("boom")
	_, err = a.Answer(context.Background(), "q", "e")
	assert.Error(t, err)
}

func decodeDataURL(url string) (image.Image, error) {
	payload := strings.TrimPrefix(url, "data:image/jpeg;base64,")
	return imaging.Decode(base64.NewDecoder(base64.StdEncoding, strings.NewReader(payload)))
}
