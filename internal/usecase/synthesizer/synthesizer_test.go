package synthesizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedLLM struct {
	content string
	err     error
	request output.ChatRequest
}

func (f *fixedLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	f.request = req
	if f.err != nil {
		return nil, f.err
	}
	return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: f.content}}, nil
}

func ledger() []entity.Observation {
	return []entity.Observation{
		{Seq: 1, Kind: entity.ObservationTool, Tool: entity.ToolGlobalBrowse, Output: "5 clips about animals"},
		{Seq: 2, Kind: entity.ObservationTool, Tool: entity.ToolClipQuery, Output: "Clip 0 shows one dog"},
		{Seq: 3, Kind: entity.ObservationTool, Tool: entity.ToolClipQuery, Output: "Error: not found", ErrorKind: entity.ErrorKindNotFound},
		{Seq: 4, Kind: entity.ObservationReflection, Output: "one dog so far", Reflection: "one dog so far"},
	}
}

func TestParseSynthesisResponse_WithTextAround(t *testing.T) {
	s := &Synthesizer{}

	result, err := s.parseSynthesisResponse("Here it is:\n{\"answer\":\"one dog\",\"justification\":\"#2\",\"citations\":[2],\"confidence\":0.4}\nbye")
	require.NoError(t, err)

	assert.Equal(t, "one dog", result.Answer)
	assert.Equal(t, []int{2}, result.Citations)
	assert.Equal(t, 0.4, result.Confidence)
}

func TestParseSynthesisResponse_InvalidJSON(t *testing.T) {
	s := &Synthesizer{}

	_, err := s.parseSynthesisResponse("no json at all")
	assert.Error(t, err)

	_, err = s.parseSynthesisResponse("{invalid json}")
	assert.Error(t, err)
}

func TestSynthesize_UsesModelAndDropsUnknownCitations(t *testing.T) {
	llm := &fixedLLM{content: `{"answer":"one dog","justification":"clip 0","citations":[2,42],"confidence":0.6}`}
	s := New(llm, logger.NewNop(), "synthesize", nil)

	result, err := s.Synthesize(context.Background(), entity.SynthesisCriteria{
		Question:     "How many dogs?",
		Observations: ledger(),
		Reason:       "iteration budget exhausted",
	})
	require.NoError(t, err)

	assert.Equal(t, "one dog", result.Answer)
	assert.Equal(t, []int{2}, result.Citations)
	user := llm.request.Messages[1].Content
	assert.Contains(t, user, "Stopped because: iteration budget exhausted")
	assert.Contains(t, user, "#2 clip_query: Clip 0 shows one dog")
	assert.Contains(t, user, "#4 reflection: one dog so far")
}

func TestSynthesize_FallsBackToDigest(t *testing.T) {
	tests := []struct {
		name string
		llm  *fixedLLM
	}{
		{name: "backend error", llm: &fixedLLM{err: errors.New("timeout")}},
		{name: "unparseable", llm: &fixedLLM{content: "I cannot answer"}},
		{name: "empty answer", llm: &fixedLLM{content: `{"answer":""}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.llm, logger.NewNop(), "synthesize", nil)

			result, err := s.Synthesize(context.Background(), entity.SynthesisCriteria{Observations: ledger(), Reason: "budget"})
			require.NoError(t, err)

			assert.Equal(t, "one dog so far", result.Answer)
			assert.Equal(t, []int{1, 2, 4}, result.Citations)
			assert.True(t, strings.HasPrefix(result.Justification, "Best-effort answer"))
		})
	}
}

func TestDigest_NoEvidence(t *testing.T) {
	result := Digest(entity.SynthesisCriteria{Reason: "cancelled"})

	assert.NotEmpty(t, result.Answer)
	assert.Empty(t, result.Citations)
	assert.Zero(t, result.Confidence)
}

func TestShorten_KeepsValidUTF8(t *testing.T) {
	got := shorten(strings.Repeat("ж", 10), 7)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "жжж...", got)
}
