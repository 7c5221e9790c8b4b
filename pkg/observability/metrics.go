package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/trajview/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trajview"

// Metrics holds the collectors fed by lifecycle hooks.
type Metrics struct {
	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	Coalesced     *prometheus.CounterVec
	Discarded     *prometheus.CounterVec
	Evictions     *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A collector already registered under the same name is reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Completed fetches per cache and outcome.",
		}, []string{"cache", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fetch collaborator calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"cache"}),
		Coalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_total",
			Help:      "Callers that joined an in-flight fetch instead of starting one.",
		}, []string{"cache"}),
		Discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_total",
			Help:      "Fetch outcomes dropped because a newer generation was issued.",
		}, []string{"cache"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Cache entries evicted after their retention window.",
		}, []string{"cache"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Viewer status transitions.",
		}, []string{"from", "to"}),
	}

	if reg == nil {
		return m, nil
	}
	var err error
	if m.Fetches, err = register(reg, m.Fetches); err != nil {
		return nil, err
	}
	if m.FetchDuration, err = register(reg, m.FetchDuration); err != nil {
		return nil, err
	}
	if m.Coalesced, err = register(reg, m.Coalesced); err != nil {
		return nil, err
	}
	if m.Discarded, err = register(reg, m.Discarded); err != nil {
		return nil, err
	}
	if m.Evictions, err = register(reg, m.Evictions); err != nil {
		return nil, err
	}
	if m.Transitions, err = register(reg, m.Transitions); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("failed to register metrics: %w", err)
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFetchDone: func(ctx context.Context, e *domain.CacheEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.Fetches.WithLabelValues(e.Cache, outcome).Inc()
			m.FetchDuration.WithLabelValues(e.Cache).Observe(e.Duration.Seconds())
		},
		OnCoalesced: func(ctx context.Context, e *domain.CacheEvent) {
			m.Coalesced.WithLabelValues(e.Cache).Inc()
		},
		OnDiscard: func(ctx context.Context, e *domain.CacheEvent) {
			m.Discarded.WithLabelValues(e.Cache).Inc()
		},
		OnEvict: func(ctx context.Context, e *domain.CacheEvent) {
			m.Evictions.WithLabelValues(e.Cache).Inc()
		},
		OnStatusChange: func(ctx context.Context, e *domain.StatusChangeEvent) {
			m.Transitions.WithLabelValues(string(e.From.Status), string(e.To.Status)).Inc()
		},
	}
}
