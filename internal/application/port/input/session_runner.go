package input

import (
	"context"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type SessionRequest struct {
	Store    output.SegmentStore
	Question string
	// Budget overrides the runner defaults field by field when non-zero.
	Budget entity.Budget
}

type SessionRunner interface {
	Run(ctx context.Context, req SessionRequest) (*entity.SessionResult, error)
}
