package output

import (
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type MetricsRecorder interface {
	SessionStarted()
	SessionFinished(reason entity.TerminationReason, elapsed time.Duration)
	PlannerCall(outcome string, elapsed time.Duration)
	ToolInvoked(tool entity.ToolName, kind entity.ErrorKind, elapsed time.Duration)
	Reflection(automatic bool)
}
