package session

import (
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type Config struct {
	Budget entity.Budget

	// PlannerAttempts bounds planner calls per planning step before the
	// session fails with a protocol error.
	PlannerAttempts int
	PlannerTimeout  time.Duration
	// PlannerRetries bounds backoff retries of transient backend failures
	// within one attempt. It is separate from PlannerAttempts.
	PlannerRetries      int
	PlannerRetryBackoff time.Duration

	ToolTimeout time.Duration
	// ToolRetries bounds backoff retries of transient tool failures.
	ToolRetries      int
	ToolRetryBackoff time.Duration
	// MaxIdenticalFailures escalates a tool+args pair that keeps failing.
	MaxIdenticalFailures int

	// ReflectEvery triggers a reflection after that many tool observations
	// since the last one. Zero leaves reflection to the planner.
	ReflectEvery              int
	MaxConsecutiveReflections int

	Render service.RenderOptions
	// FailureTail is how many observations a failure report highlights.
	FailureTail int
}

func DefaultConfig() Config {
	return Config{
		Budget: entity.Budget{
			MaxIterations: 20,
			MaxToolCalls:  30,
			MaxDuration:   10 * time.Minute,
		},
		PlannerAttempts:           3,
		PlannerTimeout:            90 * time.Second,
		PlannerRetries:            3,
		PlannerRetryBackoff:       time.Second,
		ToolTimeout:               2 * time.Minute,
		ToolRetries:               2,
		ToolRetryBackoff:          500 * time.Millisecond,
		MaxIdenticalFailures:      3,
		ReflectEvery:              0,
		MaxConsecutiveReflections: 1,
		Render: service.RenderOptions{
			MaxItems:  40,
			MaxTokens: 24000,
		},
		FailureTail: 5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Budget.MaxIterations <= 0 {
		c.Budget.MaxIterations = def.Budget.MaxIterations
	}
	if c.PlannerAttempts <= 0 {
		c.PlannerAttempts = def.PlannerAttempts
	}
	if c.PlannerRetries < 0 {
		c.PlannerRetries = 0
	}
	if c.PlannerRetryBackoff <= 0 {
		c.PlannerRetryBackoff = def.PlannerRetryBackoff
	}
	if c.MaxIdenticalFailures <= 0 {
		c.MaxIdenticalFailures = def.MaxIdenticalFailures
	}
	if c.ToolRetries < 0 {
		c.ToolRetries = 0
	}
	if c.ToolRetryBackoff <= 0 {
		c.ToolRetryBackoff = def.ToolRetryBackoff
	}
	if c.MaxConsecutiveReflections <= 0 {
		c.MaxConsecutiveReflections = def.MaxConsecutiveReflections
	}
	if c.FailureTail <= 0 {
		c.FailureTail = def.FailureTail
	}
	return c
}

// merge applies the non-zero fields of a per-request budget.
func merge(base, override entity.Budget) entity.Budget {
	if override.MaxIterations > 0 {
		base.MaxIterations = override.MaxIterations
	}
	if override.MaxToolCalls > 0 {
		base.MaxToolCalls = override.MaxToolCalls
	}
	if override.MaxDuration > 0 {
		base.MaxDuration = override.MaxDuration
	}
	return base
}
