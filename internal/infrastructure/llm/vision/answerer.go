package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

var _ output.Answerer = (*Answerer)(nil)

// Answerer answers focused questions about a clip from its textual evidence.
type Answerer struct {
	llm    output.LLMPort
	prompt string
}

func NewAnswerer(llm output.LLMPort, prompt string) *Answerer {
	return &Answerer{llm: llm, prompt: prompt}
}

func (a *Answerer) Answer(ctx context.Context, question, evidence string) (string, error) {
	resp, err := a.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: a.prompt},
			{Role: entity.RoleUser, Content: fmt.Sprintf("Evidence:\n%s\n\nQuestion: %s", evidence, question)},
		},
		Temperature: 0.0,
	})
	if err != nil {
		return "", fmt.Errorf("vision.Answerer.Answer: %w", err)
	}
	return strings.TrimSpace(resp.Message.Content), nil
}
