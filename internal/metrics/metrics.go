package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdfdesk/internal/task"
)

const namespace = "pdfdesk"

// Metrics holds the task collectors.
type Metrics struct {
	activeTasks  prometheus.Gauge
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	outputsTotal *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Tasks currently pending or processing",
		}),
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Finished tasks by type and final status",
			},
			[]string{"type", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Time from task creation to its terminal status",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		outputsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outputs_total",
				Help:      "Delivered output files by task type",
			},
			[]string{"type"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.activeTasks, m.tasksTotal, m.taskDuration, m.outputsTotal)
	return m
}

// Attach feeds the collectors from registry events. The returned function detaches.
func (m *Metrics) Attach(reg *task.Registry) func() {
	m.activeTasks.Set(float64(reg.ActiveCount()))
	return reg.Subscribe(m.Observe)
}

// Observe records one registry event.
func (m *Metrics) Observe(evt task.Event) {
	m.activeTasks.Set(float64(evt.ActiveCount))
	if !evt.Finished {
		return
	}
	t := evt.Task
	m.tasksTotal.WithLabelValues(string(t.Type), string(t.Status)).Inc()
	if t.EndTime != nil {
		m.taskDuration.WithLabelValues(string(t.Type)).Observe(t.EndTime.Sub(t.StartTime).Seconds())
	}
	if t.Status == task.StatusCompleted {
		m.outputsTotal.WithLabelValues(string(t.Type)).Add(float64(len(t.Result)))
	}
}

// Handler returns the http.Handler for /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
