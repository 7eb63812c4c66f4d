package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/input"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/google/uuid"
)

var _ input.SessionRunner = (*Controller)(nil)

type Deps struct {
	Planner     output.Planner
	Synthesizer output.Synthesizer
	Toolsets    output.ToolsetFactory
	Logger      output.LoggerPort
	// Optional collaborators.
	Metrics      output.MetricsRecorder
	Progress     output.ProgressPort
	Archive      output.SessionArchive
	TokenCounter service.TokenCounter
}

// Controller runs question-answering sessions. It holds no per-session
// state and can run many sessions concurrently.
type Controller struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

func New(deps Deps, cfg Config) *Controller {
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	return &Controller{
		deps: deps,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Run drives one session to a terminal state. The error is non-nil only for
// an invalid request; every started session yields a result, either an
// answer or a failure report.
func (c *Controller) Run(ctx context.Context, req input.SessionRequest) (*entity.SessionResult, error) {
	if req.Store == nil {
		return nil, fmt.Errorf("session.Controller.Run: %w", &entity.ValidationError{Field: "store", Reason: "no video store"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("session.Controller.Run: %w", &entity.ValidationError{Field: "question", Reason: "must not be empty"})
	}

	id := uuid.NewString()
	s := &session{
		c:        c,
		id:       id,
		question: req.Question,
		videoID:  req.Store.VideoID(),
		budget:   merge(c.cfg.Budget, req.Budget),
		memory:   service.NewObservationMemory(service.WithTokenCounter(c.deps.TokenCounter)),
		logger:   c.deps.Logger.WithFields(map[string]any{"session_id": id, "video_id": req.Store.VideoID()}),
		state:    entity.StatePlanning,
		failures: make(map[string]int),
		started:  c.now(),
	}

	c.deps.Metrics.SessionStarted()
	s.logger.Info("Session started", "question", req.Question, "max_iterations", s.budget.MaxIterations)

	tools, err := c.deps.Toolsets(req.Store)
	var result *entity.SessionResult
	if err != nil {
		result = s.fail(entity.FailureInternal, fmt.Errorf("build toolset: %w", err))
	} else {
		s.tools = tools
		s.catalog = tools.List()
		result = s.run(ctx)
	}

	c.deps.Metrics.SessionFinished(result.Reason, result.Elapsed)
	s.logger.Info("Session finished",
		"reason", result.Reason,
		"state", result.FinalState,
		"iterations", result.Iterations,
		"tool_calls", result.ToolCalls,
		"elapsed", result.Elapsed.String(),
	)

	if c.deps.Progress != nil {
		c.deps.Progress.ShowAnswer(ctx, *result)
	}
	if c.deps.Archive != nil {
		// archiving must not depend on the caller's context having survived
		if err := c.deps.Archive.Save(context.WithoutCancel(ctx), *result); err != nil {
			s.logger.Error("Failed to archive session", "error", err)
		}
	}
	return result, nil
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()                                              {}
func (nopRecorder) SessionFinished(entity.TerminationReason, time.Duration)      {}
func (nopRecorder) PlannerCall(string, time.Duration)                            {}
func (nopRecorder) ToolInvoked(entity.ToolName, entity.ErrorKind, time.Duration) {}
func (nopRecorder) Reflection(bool)                                              {}
