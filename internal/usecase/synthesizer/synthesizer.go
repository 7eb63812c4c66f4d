package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

var _ output.Synthesizer = (*Synthesizer)(nil)

const (
	digestItems   = 3
	digestItemLen = 400
)

// Synthesizer produces the best-effort answer when a session stops without
// the planner terminating. It always returns an answer.
type Synthesizer struct {
	llm    output.LLMPort
	logger output.LoggerPort
	prompt string
	render func([]entity.Observation) string
}

func New(llm output.LLMPort, logger output.LoggerPort, prompt string, render func([]entity.Observation) string) *Synthesizer {
	if render == nil {
		render = renderLedger
	}
	return &Synthesizer{
		llm:    llm,
		logger: logger,
		prompt: prompt,
		render: render,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, criteria entity.SynthesisCriteria) (*entity.SynthesisResult, error) {
	if s.llm == nil {
		return Digest(criteria), nil
	}

	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: s.prompt},
		{Role: entity.RoleUser, Content: fmt.Sprintf("Question: %s\n\nStopped because: %s\n\nObservations:\n%s",
			criteria.Question, criteria.Reason, s.render(criteria.Observations))},
	}

	resp, err := s.llm.Chat(ctx, output.ChatRequest{
		Messages:    messages,
		Temperature: 0.0,
	})
	if err != nil {
		s.logger.Warn("Synthesis request failed, using digest", "error", err)
		return Digest(criteria), nil
	}

	result, err := s.parseSynthesisResponse(resp.Message.Content)
	if err != nil || strings.TrimSpace(result.Answer) == "" {
		s.logger.Warn("Failed to parse synthesis response, using digest", "error", err)
		return Digest(criteria), nil
	}

	result.Citations = knownCitations(result.Citations, criteria.Observations)

	s.logger.Info("Synthesis completed",
		"confidence", result.Confidence,
		"citations", len(result.Citations),
	)

	return result, nil
}

func (s *Synthesizer) parseSynthesisResponse(response string) (*entity.SynthesisResult, error) {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON found in response")
	}

	jsonStr := response[start : end+1]

	var result entity.SynthesisResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &result, nil
}

// Digest builds an answer from the most recent successful observations
// without calling a model.
func Digest(criteria entity.SynthesisCriteria) *entity.SynthesisResult {
	var picked []entity.Observation
	for i := len(criteria.Observations) - 1; i >= 0 && len(picked) < digestItems; i-- {
		o := criteria.Observations[i]
		if o.Failed() {
			continue
		}
		picked = append([]entity.Observation{o}, picked...)
	}

	if len(picked) == 0 {
		return &entity.SynthesisResult{
			Answer:        "No answer could be determined from the video.",
			Justification: "No successful observations were gathered before the session stopped (" + criteria.Reason + ").",
			Confidence:    0,
		}
	}

	var sb strings.Builder
	citations := make([]int, 0, len(picked))
	for _, o := range picked {
		sb.WriteString(fmt.Sprintf("#%d: %s\n", o.Seq, shorten(o.Output, digestItemLen)))
		citations = append(citations, o.Seq)
	}

	last := picked[len(picked)-1]
	return &entity.SynthesisResult{
		Answer:        shorten(last.Output, digestItemLen),
		Justification: "Best-effort answer from the latest evidence (" + criteria.Reason + "):\n" + strings.TrimRight(sb.String(), "\n"),
		Citations:     citations,
		Confidence:    0.1,
	}
}

func knownCitations(citations []int, ledger []entity.Observation) []int {
	known := make(map[int]bool, len(ledger))
	for _, o := range ledger {
		known[o.Seq] = true
	}
	out := make([]int, 0, len(citations))
	for _, c := range citations {
		if known[c] {
			out = append(out, c)
		}
	}
	return out
}

func renderLedger(observations []entity.Observation) string {
	var sb strings.Builder
	for _, o := range observations {
		label := string(o.Tool)
		if o.Kind == entity.ObservationReflection {
			label = "reflection"
		}
		sb.WriteString(fmt.Sprintf("#%d %s: %s\n", o.Seq, label, shorten(o.Output, 2000)))
	}
	return sb.String()
}

func shorten(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return service.TruncateUTF8(s, maxLen) + "..."
}
