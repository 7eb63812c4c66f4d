package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/cenkalti/backoff/v4"
)

const (
	outcomeOK        = "ok"
	outcomeMalformed = "malformed"
	outcomeError     = "error"
)

// session is the mutable state of one Run. It is owned by a single goroutine.
type session struct {
	c        *Controller
	id       string
	question string
	videoID  string
	budget   entity.Budget

	tools   output.ToolRegistry
	catalog []entity.ToolDefinition
	memory  *service.ObservationMemory
	logger  output.LoggerPort

	state      entity.SessionState
	iterations int
	toolCalls  int
	// reflections issued back to back without a tool call in between
	consecutiveReflections int
	// failures counts failed calls per tool and canonical arguments
	failures map[string]int
	started  time.Time

	decision  entity.PlanDecision
	pending   entity.Observation
	automatic bool
}

func (s *session) run(ctx context.Context) *entity.SessionResult {
	for !s.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return s.fail(entity.FailureCancelled, err)
		}

		switch s.state {
		case entity.StatePlanning:
			if res := s.checkBudget(ctx); res != nil {
				return res
			}
			if s.dueForReflection() {
				s.decision = entity.Reflect("")
				s.automatic = true
				s.state = entity.StateReflecting
				continue
			}

			d, err := s.plan(ctx)
			if err != nil {
				return s.planningFailure(ctx, err)
			}
			s.decision = d
			switch d.Kind {
			case entity.DecisionInvokeTool:
				s.state = entity.StateActing
			case entity.DecisionReflect:
				s.automatic = false
				s.state = entity.StateReflecting
			case entity.DecisionTerminate:
				return s.answer(d)
			}

		case entity.StateActing:
			obs, err := s.act(ctx)
			if err != nil {
				return s.fail(entity.FailureCancelled, err)
			}
			s.pending = obs
			s.state = entity.StateUpdating

		case entity.StateUpdating:
			obs := s.memory.Append(s.pending)
			s.iterations++
			s.consecutiveReflections = 0
			if obs.Failed() {
				key := failureKey(obs.Tool, obs.Args)
				s.failures[key]++
				if n := s.failures[key]; n >= s.c.cfg.MaxIdenticalFailures {
					return s.fail(entity.FailureToolEscalation, fmt.Errorf("%w: %s failed %d times with the same arguments: %s",
						entity.ErrToolEscalation, obs.Tool, n, obs.Error))
				}
			}
			s.state = entity.StatePlanning

		case entity.StateReflecting:
			if err := s.reflect(ctx); err != nil {
				return s.fail(entity.FailureCancelled, err)
			}
			s.iterations++
			s.consecutiveReflections++
			s.state = entity.StatePlanning
		}
	}
	return s.fail(entity.FailureInternal, fmt.Errorf("unexpected terminal state %s", s.state))
}

// checkBudget runs at every planning boundary and ends the session with a
// synthesized answer once any limit is reached.
func (s *session) checkBudget(ctx context.Context) *entity.SessionResult {
	var exceeded string
	switch {
	case s.iterations >= s.budget.MaxIterations:
		exceeded = fmt.Sprintf("iteration limit %d reached", s.budget.MaxIterations)
	case s.budget.MaxToolCalls > 0 && s.toolCalls >= s.budget.MaxToolCalls:
		exceeded = fmt.Sprintf("tool call limit %d reached", s.budget.MaxToolCalls)
	case s.budget.MaxDuration > 0 && s.elapsed() >= s.budget.MaxDuration:
		exceeded = fmt.Sprintf("time limit %s reached", s.budget.MaxDuration)
	default:
		return nil
	}

	s.logger.Warn("Budget exhausted", "detail", exceeded, "iterations", s.iterations, "tool_calls", s.toolCalls)
	return s.exhausted(ctx, exceeded)
}

func (s *session) dueForReflection() bool {
	every := s.c.cfg.ReflectEvery
	return every > 0 &&
		s.consecutiveReflections < s.c.cfg.MaxConsecutiveReflections &&
		s.memory.SinceLastReflection() >= every
}

// plan asks the planner for an admissible decision, re-prompting with the
// rejection reasons up to PlannerAttempts times.
func (s *session) plan(ctx context.Context) (entity.PlanDecision, error) {
	var (
		notes   []string
		lastErr error
	)
	for attempt := 1; attempt <= s.c.cfg.PlannerAttempts; attempt++ {
		in := output.PlannerInput{
			Question:  s.question,
			Tools:     s.catalog,
			Context:   s.memory.RenderContext(s.c.cfg.Render),
			Notes:     notes,
			ToolCalls: s.toolCalls,
			Remaining: s.budget.MaxIterations - s.iterations,
		}

		start := time.Now()
		d, err := s.decide(ctx, in)
		if err == nil {
			err = s.admit(d)
		}
		if err == nil {
			s.c.deps.Metrics.PlannerCall(outcomeOK, time.Since(start))
			s.logger.Debug("Planner decided", "kind", d.Kind, "tool", d.Tool, "attempt", attempt)
			return d, nil
		}
		if ctx.Err() != nil {
			return entity.PlanDecision{}, ctx.Err()
		}

		if !errors.Is(err, entity.ErrMalformedDecision) {
			// backend failure that outlived its retries
			return entity.PlanDecision{}, err
		}
		lastErr = err
		s.c.deps.Metrics.PlannerCall(outcomeMalformed, time.Since(start))
		notes = append(notes, fmt.Sprintf("Attempt %d was rejected: %v", attempt, err))
		s.logger.Warn("Planner attempt rejected", "attempt", attempt, "error", err)
	}
	return entity.PlanDecision{}, lastErr
}

// decide makes one planner call, retrying transient backend failures and
// timeouts with exponential backoff. Malformed replies are returned at once.
func (s *session) decide(ctx context.Context, in output.PlannerInput) (entity.PlanDecision, error) {
	var d entity.PlanDecision
	retry := 0
	op := func() error {
		callCtx, cancel := withTimeout(ctx, s.c.cfg.PlannerTimeout)
		defer cancel()

		start := time.Now()
		res, err := s.c.deps.Planner.Decide(callCtx, in)
		if err == nil {
			d = res
			return nil
		}
		if errors.Is(err, entity.ErrMalformedDecision) {
			return backoff.Permanent(err)
		}
		s.c.deps.Metrics.PlannerCall(outcomeError, time.Since(start))
		if ctx.Err() != nil || !entity.ClassifyError(err).Retryable() {
			return backoff.Permanent(err)
		}
		retry++
		s.logger.Warn("Retryable planner failure", "retry", retry, "error", err)
		return err
	}

	if err := backoff.Retry(op, s.retryPolicy(ctx, s.c.cfg.PlannerRetryBackoff, s.c.cfg.PlannerRetries)); err != nil {
		return entity.PlanDecision{}, err
	}
	return d, nil
}

func (s *session) retryPolicy(ctx context.Context, initial time.Duration, retries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// admit applies the session-level rules a decision must satisfy.
func (s *session) admit(d entity.PlanDecision) error {
	switch d.Kind {
	case entity.DecisionInvokeTool:
		if err := s.tools.Validate(d.Tool, d.Args); err != nil {
			return fmt.Errorf("%w: %s: %v", entity.ErrMalformedDecision, d.Tool, err)
		}
	case entity.DecisionReflect:
		if s.consecutiveReflections >= s.c.cfg.MaxConsecutiveReflections {
			return fmt.Errorf("%w: reflect requested %d times in a row, invoke a tool or terminate",
				entity.ErrMalformedDecision, s.consecutiveReflections+1)
		}
	case entity.DecisionTerminate:
		if s.memory.ToolInvocations() == 0 {
			return fmt.Errorf("%w: terminate before any tool was used", entity.ErrMalformedDecision)
		}
		if strings.TrimSpace(d.Answer) == "" {
			return fmt.Errorf("%w: terminate without an answer", entity.ErrMalformedDecision)
		}
	default:
		return fmt.Errorf("%w: unknown decision kind %q", entity.ErrMalformedDecision, d.Kind)
	}
	return nil
}

func (s *session) planningFailure(ctx context.Context, err error) *entity.SessionResult {
	switch {
	case ctx.Err() != nil:
		return s.fail(entity.FailureCancelled, ctx.Err())
	case errors.Is(err, entity.ErrMalformedDecision):
		return s.fail(entity.FailurePlannerProtocol, fmt.Errorf("%w after %d attempts: %v",
			entity.ErrPlannerProtocol, s.c.cfg.PlannerAttempts, err))
	default:
		return s.fail(entity.FailureInternal, fmt.Errorf("planner: %w", err))
	}
}

// act runs the chosen tool. Tool failures become observations; the error is
// non-nil only when the session itself was cancelled.
func (s *session) act(ctx context.Context) (entity.Observation, error) {
	d := s.decision
	s.toolCalls++

	if p := s.c.deps.Progress; p != nil {
		p.ShowIteration(ctx, s.iterations+1, s.budget.MaxIterations)
		p.ShowToolStart(ctx, d.Tool, string(d.Args))
	}
	s.logger.Info("Invoking tool", "tool", d.Tool, "args", string(d.Args), "iteration", s.iterations+1)

	out, err := s.invoke(ctx, d)
	if err != nil && ctx.Err() != nil {
		return entity.Observation{}, ctx.Err()
	}

	var obs entity.Observation
	if err != nil {
		obs = entity.NewFailureObservation(d.Tool, d.Args, err)
		s.logger.Warn("Tool failed", "tool", d.Tool, "kind", obs.ErrorKind, "error", err)
	} else {
		obs = entity.NewToolObservation(d.Tool, d.Args, out)
	}
	if p := s.c.deps.Progress; p != nil {
		p.ShowToolResult(ctx, d.Tool, obs.Output, obs.Failed())
	}
	return obs, nil
}

// invoke calls the tool under the per-call timeout and retries transient
// failures with exponential backoff.
func (s *session) invoke(ctx context.Context, d entity.PlanDecision) (entity.ToolOutput, error) {
	var out entity.ToolOutput
	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := withTimeout(ctx, s.c.cfg.ToolTimeout)
		defer cancel()

		start := time.Now()
		res, err := s.tools.Invoke(callCtx, d.Tool, d.Args)
		kind := entity.ClassifyError(err)
		s.c.deps.Metrics.ToolInvoked(d.Tool, kind, time.Since(start))
		if err == nil {
			out = res
			return nil
		}
		if ctx.Err() != nil || !kind.Retryable() {
			return backoff.Permanent(err)
		}
		s.logger.Warn("Retryable tool failure", "tool", d.Tool, "attempt", attempt, "error", err)
		return err
	}

	if err := backoff.Retry(op, s.retryPolicy(ctx, s.c.cfg.ToolRetryBackoff, s.c.cfg.ToolRetries)); err != nil {
		return entity.ToolOutput{}, err
	}
	return out, nil
}

// reflect appends a reflection note. A planner-issued reflection may carry
// its own summary; otherwise the planner is asked to summarize. If that
// fails the note falls back to a deterministic checkpoint so the loop keeps
// moving.
func (s *session) reflect(ctx context.Context) error {
	note := strings.TrimSpace(s.decision.Summary)
	if note == "" {
		callCtx, cancel := withTimeout(ctx, s.c.cfg.PlannerTimeout)
		start := time.Now()
		summary, err := s.c.deps.Planner.Summarize(callCtx, output.SummaryInput{
			Question: s.question,
			Context:  s.memory.RenderContext(s.c.cfg.Render),
		})
		cancel()
		switch {
		case err == nil:
			s.c.deps.Metrics.PlannerCall(outcomeOK, time.Since(start))
			note = strings.TrimSpace(summary)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			s.c.deps.Metrics.PlannerCall(outcomeError, time.Since(start))
			s.logger.Warn("Summarize failed, writing checkpoint note", "error", err)
		}
	}
	if note == "" {
		note = s.checkpoint()
	}

	obs := s.memory.Append(entity.NewReflectionObservation(note))
	s.c.deps.Metrics.Reflection(s.automatic)
	s.logger.Info("Reflection recorded", "seq", obs.Seq, "automatic", s.automatic)
	if p := s.c.deps.Progress; p != nil {
		p.ShowReflection(ctx, note)
	}
	return nil
}

func (s *session) checkpoint() string {
	ok, failed := 0, 0
	var tools []string
	seen := make(map[entity.ToolName]bool)
	for _, o := range s.memory.All() {
		if !o.IsToolInvocation() {
			continue
		}
		if o.Failed() {
			failed++
		} else {
			ok++
		}
		if !seen[o.Tool] {
			seen[o.Tool] = true
			tools = append(tools, string(o.Tool))
		}
	}
	return fmt.Sprintf("Checkpoint: %d tool calls so far (%d succeeded, %d failed) using %s.",
		ok+failed, ok, failed, strings.Join(tools, ", "))
}

func (s *session) answer(d entity.PlanDecision) *entity.SessionResult {
	res := s.result(entity.StateTerminated, entity.ReasonAnswered)
	res.Answer = d.Answer
	res.Justification = d.Justification
	res.Citations = s.citations(d.Citations)
	res.Confident = true
	return res
}

// exhausted ends the session with a best-effort answer built from the ledger.
func (s *session) exhausted(ctx context.Context, detail string) *entity.SessionResult {
	res := s.result(entity.StateTerminated, entity.ReasonBudgetExhausted)
	synth, err := s.c.deps.Synthesizer.Synthesize(ctx, entity.SynthesisCriteria{
		Question:     s.question,
		Observations: s.memory.All(),
		Reason:       detail,
	})
	if err != nil {
		s.logger.Error("Synthesis failed", "error", err)
		res.Justification = fmt.Sprintf("Budget exhausted (%s) and no answer could be synthesized: %v", detail, err)
		return res
	}
	res.Answer = synth.Answer
	res.Justification = synth.Justification
	res.Citations = s.citations(synth.Citations)
	return res
}

// citations keeps references to existing ledger entries, deduplicated in the
// given order. With nothing left it cites every successful tool observation.
func (s *session) citations(refs []int) []int {
	seen := make(map[int]bool, len(refs))
	out := make([]int, 0, len(refs))
	for _, seq := range refs {
		if _, ok := s.memory.Get(seq); !ok {
			s.logger.Warn("Dropping citation of unknown observation", "seq", seq)
			continue
		}
		if !seen[seq] {
			seen[seq] = true
			out = append(out, seq)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, o := range s.memory.All() {
		if o.IsToolInvocation() && !o.Failed() {
			out = append(out, o.Seq)
		}
	}
	return out
}

func (s *session) fail(kind entity.FailureKind, err error) *entity.SessionResult {
	s.logger.Error("Session failed", "kind", kind, "error", err)
	res := s.result(entity.StateFailed, entity.ReasonFailed)
	res.Failure = &entity.FailureReport{
		Kind:             kind,
		Message:          err.Error(),
		LastObservations: s.memory.Last(s.c.cfg.FailureTail),
		Ledger:           res.Observations,
	}
	return res
}

func (s *session) result(state entity.SessionState, reason entity.TerminationReason) *entity.SessionResult {
	s.state = state
	return &entity.SessionResult{
		SessionID:    s.id,
		VideoID:      s.videoID,
		Question:     s.question,
		Reason:       reason,
		FinalState:   state,
		Iterations:   s.iterations,
		ToolCalls:    s.toolCalls,
		Elapsed:      s.elapsed(),
		Observations: s.memory.All(),
	}
}

func (s *session) elapsed() time.Duration {
	return s.c.now().Sub(s.started)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// failureKey identifies a tool call by name and canonical arguments, so that
// key order and whitespace do not hide a repeated call.
func failureKey(tool entity.ToolName, args json.RawMessage) string {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return string(tool) + " " + string(args)
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return string(tool) + " " + string(args)
	}
	return string(tool) + " " + string(canon)
}
