package bookqa

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values. Health reports its status instead.
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeCached   = "cached"
	outcomeAnswered = "answered"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	contextBytes prometheus.Histogram
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookqa",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookqa",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		contextBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookqa",
			Subsystem: "sdk",
			Name:      "answer_context_bytes",
			Help:      "Size of the book context sent with freshly answered questions.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
		}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.contextBytes); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("bookqa: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("bookqa: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// observe records one operation. A non-nil err forces the error outcome.
func (o *observer) observe(op, outcome string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	if err != nil {
		outcome = outcomeError
	}

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, outcome).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger != nil {
		if err != nil {
			o.logger.Warn("operation failed",
				"op", op,
				"duration", dur,
				"error", err,
			)
		} else {
			o.logger.Debug("operation completed",
				"op", op,
				"outcome", outcome,
				"duration", dur,
			)
		}
	}
}

// observeAsk records an ask as cached or answered. Fresh answers also
// record the size of the context they were built from.
func (o *observer) observeAsk(start time.Time, ans Answer, err error) {
	if o == nil {
		return
	}
	outcome := outcomeAnswered
	if ans.Cached {
		outcome = outcomeCached
	}
	o.observe("ask", outcome, start, err)

	if err == nil && !ans.Cached && o.metrics != nil {
		o.metrics.contextBytes.Observe(float64(len(ans.Context)))
	}
}
