package output

import (
	"context"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type SessionArchive interface {
	Save(ctx context.Context, result entity.SessionResult) error
	Get(ctx context.Context, sessionID string) (*entity.SessionResult, error)
	Close() error
}
