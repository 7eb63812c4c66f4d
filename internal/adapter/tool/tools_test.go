package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/segmentstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDescriber struct {
	calls atomic.Int64
}

func (d *fakeDescriber) Describe(ctx context.Context, frame entity.Frame) (string, error) {
	d.calls.Add(1)
	return fmt.Sprintf("animal close-up at %.0fs", frame.Timestamp), nil
}

type echoAnswerer struct {
	calls atomic.Int64
	err   error
}

func (a *echoAnswerer) Answer(ctx context.Context, question, evidence string) (string, error) {
	a.calls.Add(1)
	if a.err != nil {
		return "", a.err
	}
	first := strings.SplitN(evidence, "\n", 2)[0]
	return "Q: " + question + " | " + first, nil
}

func animalStore(t *testing.T, describer *fakeDescriber) *segmentstore.Store {
	t.Helper()
	db := segmentstore.DatabaseFile{
		VideoID:       "animals",
		VideoFileRoot: "/videos/animals",
		FPS:           0.5,
		Clips: []segmentstore.DatabaseClip{
			{ClipIndex: 0, StartTime: 0, EndTime: 10, OverviewText: "A dog runs across a green lawn."},
			{ClipIndex: 1, StartTime: 10, EndTime: 20, OverviewText: "A cat sleeps on a sofa."},
			{ClipIndex: 2, StartTime: 20, EndTime: 30, OverviewText: "A parrot talks to the camera."},
			{ClipIndex: 3, StartTime: 30, EndTime: 40, OverviewText: "A black dog catches a frisbee."},
			{ClipIndex: 4, StartTime: 40, EndTime: 50, OverviewText: "The credits roll over an empty garden."},
		},
	}
	video, err := db.ToVideo()
	require.NoError(t, err)
	return segmentstore.New(video, segmentstore.Options{Describer: describer})
}

func newRegistry(t *testing.T, deps Deps) (*service.ToolRegistryImpl, *fakeDescriber) {
	t.Helper()
	describer := &fakeDescriber{}
	registry := service.NewToolRegistry()
	require.NoError(t, RegisterVideoTools(registry, animalStore(t, describer), deps))
	return registry, describer
}

func invoke(t *testing.T, r *service.ToolRegistryImpl, name entity.ToolName, args string) (entity.ToolOutput, error) {
	t.Helper()
	return r.Invoke(context.Background(), name, json.RawMessage(args))
}

func TestRegisterVideoTools_Order(t *testing.T) {
	r, _ := newRegistry(t, Deps{})

	defs := r.List()

	require.Len(t, defs, 4)
	assert.Equal(t, entity.ToolGlobalBrowse, defs[0].Name)
	assert.Equal(t, entity.ToolClipSearch, defs[1].Name)
	assert.Equal(t, entity.ToolClipQuery, defs[2].Name)
	assert.Equal(t, entity.ToolFrameQuery, defs[3].Name)
	assert.Equal(t, entity.GranularityFrame, defs[3].Granularity)
}

func TestGlobalBrowse(t *testing.T) {
	r, _ := newRegistry(t, Deps{CaptionLen: 20})

	out, err := invoke(t, r, entity.ToolGlobalBrowse, `{"query":"animals"}`)
	require.NoError(t, err)

	assert.Contains(t, out.Text, "Video animals, duration 00:50, 5 clips.")
	assert.Contains(t, out.Text, "Looking for: animals")
	assert.Contains(t, out.Text, "[clip 1] 00:10-00:20: A cat sleeps on a...")
	assert.Equal(t, []int{0, 1, 2, 3, 4}, out.Provenance.ClipIndices)
}

func TestClipSearch(t *testing.T) {
	r, _ := newRegistry(t, Deps{})

	out, err := invoke(t, r, entity.ToolClipSearch, `{"query":"dog","top_k":3}`)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{0, 3}, out.Provenance.ClipIndices)
	assert.Contains(t, out.Text, "[clip 0]")
	assert.Contains(t, out.Text, "[clip 3]")

	out, err = invoke(t, r, entity.ToolClipSearch, `{"query":"submarine"}`)
	require.NoError(t, err)
	assert.Contains(t, out.Text, "No clips matched")
	assert.Empty(t, out.Provenance.ClipIndices)

	_, err = invoke(t, r, entity.ToolClipSearch, `{"query":"  "}`)
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)
}

func TestClipQuery_RawEvidenceWithoutAnswerer(t *testing.T) {
	r, describer := newRegistry(t, Deps{})

	out, err := invoke(t, r, entity.ToolClipQuery, `{"clip_indices":[3,0],"question":"what animal?"}`)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 0}, out.Provenance.ClipIndices)
	assert.Less(t, strings.Index(out.Text, "## Clip 3"), strings.Index(out.Text, "## Clip 0"))
	assert.Contains(t, out.Text, "Overview: A black dog catches a frisbee.")
	assert.Equal(t, int64(0), describer.calls.Load())
}

func TestClipQuery_WithFramesAndAnswerer(t *testing.T) {
	answerer := &echoAnswerer{}
	r, describer := newRegistry(t, Deps{Answerer: answerer})

	out, err := invoke(t, r, entity.ToolClipQuery, `{"clip_index":1,"question":"is the cat awake?","include_frames":true}`)
	require.NoError(t, err)

	assert.Contains(t, out.Text, "Q: is the cat awake? | Clip 1, 00:10-00:20.")
	assert.Equal(t, []int{1}, out.Provenance.ClipIndices)
	assert.Equal(t, []float64{10, 12, 14, 16, 18}, out.Provenance.FrameTimestamps)
	assert.Equal(t, int64(5), describer.calls.Load())
	assert.Equal(t, int64(1), answerer.calls.Load())
}

func TestClipQuery_Errors(t *testing.T) {
	r, _ := newRegistry(t, Deps{})

	_, err := invoke(t, r, entity.ToolClipQuery, `{"clip_index":99,"question":"anything"}`)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = invoke(t, r, entity.ToolClipQuery, `{"clip_indices":[0,1,2,3,4],"question":"too many"}`)
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)

	_, err = invoke(t, r, entity.ToolClipQuery, `{"question":"which clip?"}`)
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)

	_, err = invoke(t, r, entity.ToolClipQuery, `{"clip_index":1}`)
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)
}

func TestClipQuery_AnswererFailure(t *testing.T) {
	answerer := &echoAnswerer{err: errors.Join(entity.ErrTransient, errors.New("model busy"))}
	r, _ := newRegistry(t, Deps{Answerer: answerer})

	_, err := invoke(t, r, entity.ToolClipQuery, `{"clip_indices":[0,1],"question":"q"}`)

	assert.ErrorIs(t, err, entity.ErrTransient)
}

func TestFrameQuery(t *testing.T) {
	answerer := &echoAnswerer{}
	r, describer := newRegistry(t, Deps{Answerer: answerer})

	out, err := invoke(t, r, entity.ToolFrameQuery, `{"clip_index":3,"start":34,"end":100,"query":"frisbee colour?"}`)
	require.NoError(t, err)

	assert.Contains(t, out.Text, "Clip 3, 3 frames:")
	assert.Contains(t, out.Text, "[00:34] animal close-up at 34s")
	assert.Contains(t, out.Text, "Answer: Q: frisbee colour?")
	assert.Equal(t, []float64{34, 36, 38}, out.Provenance.FrameTimestamps)

	again, err := invoke(t, r, entity.ToolFrameQuery, `{"clip_index":3,"start":34,"end":100}`)
	require.NoError(t, err)
	assert.NotContains(t, again.Text, "Answer:")
	assert.Equal(t, int64(3), describer.calls.Load(), "descriptions are cached by the store")
}

func TestFrameQuery_Errors(t *testing.T) {
	r, _ := newRegistry(t, Deps{})

	_, err := invoke(t, r, entity.ToolFrameQuery, `{"clip_index":99,"start":0,"end":1}`)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = invoke(t, r, entity.ToolFrameQuery, `{"clip_index":1,"start":15}`)
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)

	_, err = invoke(t, r, entity.ToolFrameQuery, `{"clip_index":1,"start":15,"end":12}`)
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)
}
