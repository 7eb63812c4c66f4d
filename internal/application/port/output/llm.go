package output

import (
	"context"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.FunctionDefinition
	Temperature float32
	MaxTokens   int
}

type ChatResponse struct {
	Message entity.Message
}
