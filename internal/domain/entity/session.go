package entity

import (
	"time"
)

type SessionState string

const (
	StatePlanning   SessionState = "planning"
	StateActing     SessionState = "acting"
	StateUpdating   SessionState = "updating"
	StateReflecting SessionState = "reflecting"
	StateTerminated SessionState = "terminated"
	StateFailed     SessionState = "failed"
)

func (s SessionState) Terminal() bool {
	return s == StateTerminated || s == StateFailed
}

type TerminationReason string

const (
	ReasonAnswered        TerminationReason = "answered"
	ReasonBudgetExhausted TerminationReason = "budget_exhausted"
	ReasonFailed          TerminationReason = "failed"
)

type FailureKind string

const (
	FailurePlannerProtocol FailureKind = "planner_protocol"
	FailureToolEscalation  FailureKind = "tool_escalation"
	FailureCancelled       FailureKind = "cancelled"
	FailureInternal        FailureKind = "internal"
)

// Budget bounds one session. Zero values disable the corresponding limit,
// except MaxIterations which always applies.
type Budget struct {
	MaxIterations int           `json:"max_iterations"`
	MaxToolCalls  int           `json:"max_tool_calls,omitempty"`
	MaxDuration   time.Duration `json:"max_duration,omitempty"`
}

type FailureReport struct {
	Kind             FailureKind   `json:"kind"`
	Message          string        `json:"message"`
	LastObservations []Observation `json:"last_observations"`
	Ledger           []Observation `json:"ledger"`
}

type SessionResult struct {
	SessionID     string            `json:"session_id"`
	VideoID       string            `json:"video_id"`
	Question      string            `json:"question"`
	Answer        string            `json:"answer,omitempty"`
	Justification string            `json:"justification,omitempty"`
	Citations     []int             `json:"citations,omitempty"`
	Reason        TerminationReason `json:"reason"`
	Confident     bool              `json:"confident"`
	FinalState    SessionState      `json:"final_state"`
	Iterations    int               `json:"iterations"`
	ToolCalls     int               `json:"tool_calls"`
	Elapsed       time.Duration     `json:"elapsed"`
	Observations  []Observation     `json:"observations"`
	Failure       *FailureReport    `json:"failure,omitempty"`
}

// Cited returns the ledger entries referenced by the answer, in citation order.
func (r SessionResult) Cited() []Observation {
	bySeq := make(map[int]Observation, len(r.Observations))
	for _, o := range r.Observations {
		bySeq[o.Seq] = o
	}
	out := make([]Observation, 0, len(r.Citations))
	for _, seq := range r.Citations {
		if o, ok := bySeq[seq]; ok {
			out = append(out, o)
		}
	}
	return out
}
