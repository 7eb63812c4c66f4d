package metrics

import (
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
)

var _ output.MetricsRecorder = (*Recorder)(nil)

const namespace = "dvd"

// Recorder exports session metrics through collectors registered on the
// given registerer.
type Recorder struct {
	active      prometheus.Gauge
	sessions    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	plannerCall *prometheus.HistogramVec
	toolCall    *prometheus.HistogramVec
	reflections *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently running.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished sessions by termination reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall clock time per session.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"reason"}),
		plannerCall: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "planner_call_duration_seconds",
			Help:      "Planner and summarizer calls by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		toolCall: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocations by tool and error kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "status"}),
		reflections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reflections_total",
			Help:      "Reflection notes appended, by trigger.",
		}, []string{"trigger"}),
	}

	for _, c := range []prometheus.Collector{r.active, r.sessions, r.duration, r.plannerCall, r.toolCall, r.reflections} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) SessionStarted() {
	r.active.Inc()
}

func (r *Recorder) SessionFinished(reason entity.TerminationReason, elapsed time.Duration) {
	r.active.Dec()
	r.sessions.WithLabelValues(string(reason)).Inc()
	r.duration.WithLabelValues(string(reason)).Observe(elapsed.Seconds())
}

func (r *Recorder) PlannerCall(outcome string, elapsed time.Duration) {
	r.plannerCall.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (r *Recorder) ToolInvoked(tool entity.ToolName, kind entity.ErrorKind, elapsed time.Duration) {
	status := string(kind)
	if kind == entity.ErrorKindNone {
		status = "ok"
	}
	r.toolCall.WithLabelValues(string(tool), status).Observe(elapsed.Seconds())
}

func (r *Recorder) Reflection(automatic bool) {
	trigger := "planner"
	if automatic {
		trigger = "automatic"
	}
	r.reflections.WithLabelValues(trigger).Inc()
}
