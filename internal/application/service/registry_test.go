package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	def   entity.ToolDefinition
	calls int
	out   entity.ToolOutput
	err   error
}

func (s *stubTool) Definition() entity.ToolDefinition { return s.def }

func (s *stubTool) Execute(ctx context.Context, args json.RawMessage) (entity.ToolOutput, error) {
	s.calls++
	return s.out, s.err
}

func newStub(name entity.ToolName, params ...entity.ParamSpec) *stubTool {
	return &stubTool{
		def: entity.ToolDefinition{Name: name, Granularity: entity.GranularityClip, Params: params},
		out: entity.ToolOutput{Text: "ok from " + string(name)},
	}
}

func TestToolRegistry_ListKeepsRegistrationOrder(t *testing.T) {
	r := NewToolRegistry()
	for _, name := range []entity.ToolName{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(newStub(name)))
	}

	first := r.List()
	second := r.List()

	require.Len(t, first, 3)
	assert.Equal(t, entity.ToolName("zeta"), first[0].Name)
	assert.Equal(t, entity.ToolName("alpha"), first[1].Name)
	assert.Equal(t, entity.ToolName("mid"), first[2].Name)
	assert.Equal(t, first, second)
}

func TestToolRegistry_RegisterDuplicate(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.Register(newStub("a")))

	err := r.Register(newStub("a"))
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)
}

func TestToolRegistry_InvokeUnknownTool(t *testing.T) {
	r := NewToolRegistry()

	_, err := r.Invoke(context.Background(), "missing", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	var te *entity.ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, entity.ErrorKindNotFound, te.Kind)
}

func TestToolRegistry_InvokeValidatesBeforeExecute(t *testing.T) {
	r := NewToolRegistry()
	tool := newStub("clip", entity.ParamSpec{Name: "clip_index", Type: entity.ParamInteger, Required: true})
	require.NoError(t, r.Register(tool))

	_, err := r.Invoke(context.Background(), "clip", json.RawMessage(`{"clip_index":"two"}`))

	assert.ErrorIs(t, err, entity.ErrInvalidArgument)
	assert.Equal(t, 0, tool.calls)

	out, err := r.Invoke(context.Background(), "clip", json.RawMessage(`{"clip_index":2}`))
	require.NoError(t, err)
	assert.Equal(t, "ok from clip", out.Text)
	assert.Equal(t, 1, tool.calls)
}

func TestToolRegistry_InvokeClassifiesToolFailure(t *testing.T) {
	r := NewToolRegistry()
	tool := newStub("flaky")
	tool.err = errors.Join(entity.ErrTransient, errors.New("backend down"))
	require.NoError(t, r.Register(tool))

	_, err := r.Invoke(context.Background(), "flaky", nil)

	var te *entity.ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, entity.ErrorKindTransient, te.Kind)
	assert.True(t, te.Kind.Retryable())
}
