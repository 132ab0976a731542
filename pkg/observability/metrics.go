package observability

import (
	"context"
	"fmt"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the bridge collectors.
type Metrics struct {
	Flushes       prometheus.Counter
	PushedPaths   *prometheus.CounterVec // by namespace
	DroppedPaths  prometheus.Counter
	PulledPaths   prometheus.Counter
	RejectedPulls prometheus.Counter
	Commands      *prometheus.CounterVec // by kind and code
	Captures      *prometheus.CounterVec // by outcome
	FlushDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_flush_total",
			Help: "Total number of flushes to the external store",
		}),
		PushedPaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_pushed_paths_total",
			Help: "Total number of paths written to the external store",
		}, []string{"namespace"}),
		DroppedPaths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_dropped_paths_total",
			Help: "Total number of changed paths not pushed because they are not externally owned",
		}),
		PulledPaths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_pulled_paths_total",
			Help: "Total number of paths pulled from the external store",
		}),
		RejectedPulls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_rejected_pulls_total",
			Help: "Total number of pulled values rejected by the runtime",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_commands_total",
			Help: "Total number of executed commands",
		}, []string{"kind", "code"}),
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_captures_total",
			Help: "Total number of captures",
		}, []string{"outcome"}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_flush_duration_seconds",
			Help:    "Duration of flushes",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Flushes, m.PushedPaths, m.DroppedPaths, m.PulledPaths,
		m.RejectedPulls, m.Commands, m.Captures, m.FlushDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register bridge metrics: %w", err)
		}
	}
	return m, nil
}

// Hooks returns hooks that record every event.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnFlush: func(_ context.Context, e *domain.FlushEvent) {
			m.Flushes.Inc()
			m.PushedPaths.WithLabelValues(string(domain.NamespaceData)).Add(float64(len(e.DataPaths)))
			m.PushedPaths.WithLabelValues(string(domain.NamespaceState)).Add(float64(len(e.StatePaths)))
			m.DroppedPaths.Add(float64(len(e.Dropped)))
			m.FlushDuration.Observe(e.Duration.Seconds())
		},
		OnPull: func(_ context.Context, e *domain.PullEvent) {
			m.PulledPaths.Add(float64(len(e.Paths)))
			m.RejectedPulls.Add(float64(len(e.Rejected)))
		},
		OnCommand: func(_ context.Context, e *domain.CommandEvent) {
			code := string(e.Code)
			if code == "" {
				code = "OK"
			}
			kind := string(e.Kind)
			if kind == "" {
				kind = "UNKNOWN"
			}
			m.Commands.WithLabelValues(kind, code).Inc()
		},
		OnCapture: func(_ context.Context, e *domain.CaptureEvent) {
			outcome := "ok"
			if e.Failed {
				outcome = "rejected"
			}
			m.Captures.WithLabelValues(outcome).Inc()
		},
	}
}
