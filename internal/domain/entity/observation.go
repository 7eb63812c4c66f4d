package entity

import (
	"encoding/json"
	"time"
)

type ObservationKind string

const (
	ObservationTool       ObservationKind = "tool"
	ObservationReflection ObservationKind = "reflection"
)

// Observation is one immutable ledger entry. Seq is assigned by the memory on append.
type Observation struct {
	Seq        int             `json:"seq"`
	Kind       ObservationKind `json:"kind"`
	Tool       ToolName        `json:"tool,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Output     string          `json:"output"`
	Provenance Provenance      `json:"provenance"`
	ErrorKind  ErrorKind       `json:"error_kind,omitempty"`
	Error      string          `json:"error,omitempty"`
	Reflection string          `json:"reflection,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (o Observation) Failed() bool {
	return o.ErrorKind != ErrorKindNone
}

func (o Observation) IsToolInvocation() bool {
	return o.Kind == ObservationTool
}

// NewToolObservation records a successful tool call.
func NewToolObservation(tool ToolName, args json.RawMessage, out ToolOutput) Observation {
	return Observation{
		Kind:       ObservationTool,
		Tool:       tool,
		Args:       args,
		Output:     out.Text,
		Provenance: out.Provenance,
		CreatedAt:  time.Now(),
	}
}

// NewFailureObservation records a failed tool call so the planner can adapt.
func NewFailureObservation(tool ToolName, args json.RawMessage, err error) Observation {
	kind := ClassifyError(err)
	return Observation{
		Kind:      ObservationTool,
		Tool:      tool,
		Args:      args,
		Output:    "Error: " + err.Error(),
		ErrorKind: kind,
		Error:     err.Error(),
		CreatedAt: time.Now(),
	}
}

func NewReflectionObservation(note string) Observation {
	return Observation{
		Kind:       ObservationReflection,
		Output:     note,
		Reflection: note,
		CreatedAt:  time.Now(),
	}
}
