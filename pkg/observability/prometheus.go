package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
)

// PrometheusHooks exports collector and git events as Prometheus metrics.
type PrometheusHooks struct {
	archivesTotal   *prometheus.CounterVec
	archiveDuration prometheus.Histogram
	depsTotal       prometheus.Counter
	skippedTotal    prometheus.Counter
	gitDuration     *prometheus.HistogramVec
}

// NewPrometheusHooks creates the metrics and registers them with reg.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	h := &PrometheusHooks{
		archivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "httparchivedeps",
				Subsystem: "collector",
				Name:      "archives_total",
				Help:      "Number of requested http_archives processed, by outcome code.",
			},
			[]string{"outcome"}),
		archiveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "httparchivedeps",
				Subsystem: "collector",
				Name:      "archive_duration_seconds",
				Help:      "Time spent materializing and scanning one http_archive.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
			}),
		depsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "httparchivedeps",
				Subsystem: "collector",
				Name:      "deps_total",
				Help:      "Number of class to target rows emitted.",
			}),
		skippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "httparchivedeps",
				Subsystem: "collector",
				Name:      "sources_skipped_total",
				Help:      "Number of declared sources that did not exist in the archive.",
			}),
		gitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "httparchivedeps",
				Subsystem: "git",
				Name:      "command_duration_seconds",
				Help:      "Duration of git commands, by operation and result.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"op", "result"}),
	}
	reg.MustRegister(h.archivesTotal, h.archiveDuration, h.depsTotal, h.skippedTotal, h.gitDuration)
	return h
}

// OnArchiveStart implements CollectorHooks.
func (h *PrometheusHooks) OnArchiveStart(context.Context, string) {}

// OnArchiveComplete implements CollectorHooks.
func (h *PrometheusHooks) OnArchiveComplete(_ context.Context, _ string, deps int, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(errs.GetCode(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	h.archivesTotal.WithLabelValues(outcome).Inc()
	h.archiveDuration.Observe(duration.Seconds())
	h.depsTotal.Add(float64(deps))
}

// OnSourceSkipped implements CollectorHooks.
func (h *PrometheusHooks) OnSourceSkipped(context.Context, string) {
	h.skippedTotal.Inc()
}

// OnCommand implements GitHooks.
func (h *PrometheusHooks) OnCommand(_ context.Context, op string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	h.gitDuration.WithLabelValues(op, result).Observe(duration.Seconds())
}

var (
	_ CollectorHooks = (*PrometheusHooks)(nil)
	_ GitHooks       = (*PrometheusHooks)(nil)
)
