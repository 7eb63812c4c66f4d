package metrics

import (
	"testing"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.SessionStarted()
	r.SessionStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.active))

	r.SessionFinished(entity.ReasonAnswered, 3*time.Second)
	r.SessionFinished(entity.ReasonBudgetExhausted, time.Minute)

	assert.Equal(t, 0.0, testutil.ToFloat64(r.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions.WithLabelValues("answered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions.WithLabelValues("budget_exhausted")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestRecorder_ToolAndReflectionLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.ToolInvoked(entity.ToolClipQuery, entity.ErrorKindNone, time.Second)
	r.ToolInvoked(entity.ToolClipQuery, entity.ErrorKindNotFound, time.Millisecond)
	r.Reflection(true)
	r.Reflection(false)
	r.Reflection(false)
	r.PlannerCall("malformed", time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(r.toolCall))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reflections.WithLabelValues("automatic")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.reflections.WithLabelValues("planner")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.plannerCall, "dvd_planner_call_duration_seconds"))
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}
