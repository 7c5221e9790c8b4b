package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsCacheAndStatusEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnFetchDone(ctx, &domain.CacheEvent{Cache: "structure", Duration: 20 * time.Millisecond})
	hooks.OnFetchDone(ctx, &domain.CacheEvent{Cache: "trajectory", Err: errors.New("timeout")})
	hooks.OnCoalesced(ctx, &domain.CacheEvent{Cache: "structure"})
	hooks.OnCoalesced(ctx, &domain.CacheEvent{Cache: "structure"})
	hooks.OnDiscard(ctx, &domain.CacheEvent{Cache: "trajectory"})
	hooks.OnEvict(ctx, &domain.CacheEvent{Cache: "trajectory"})
	hooks.OnStatusChange(ctx, &domain.StatusChangeEvent{From: domain.Idle(), To: domain.ViewerStatus{Status: domain.StatusLoading}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("structure", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("trajectory", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Coalesced.WithLabelValues("structure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Discarded.WithLabelValues("trajectory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evictions.WithLabelValues("trajectory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("idle", "loading")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.FetchDuration))
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	second, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	second.Hooks().OnEvict(context.Background(), &domain.CacheEvent{Cache: "structure"})
	assert.Equal(t, 1.0, testutil.ToFloat64(first.Evictions.WithLabelValues("structure")))
}

func TestChain(t *testing.T) {
	var order []string
	a := domain.LifecycleHooks{OnEvict: func(ctx context.Context, e *domain.CacheEvent) { order = append(order, "a") }}
	b := domain.LifecycleHooks{
		OnEvict:   func(ctx context.Context, e *domain.CacheEvent) { order = append(order, "b") },
		OnDiscard: func(ctx context.Context, e *domain.CacheEvent) { order = append(order, "discard") },
	}

	h := observability.Chain(a, domain.LifecycleHooks{}, b)
	h.OnEvict(context.Background(), &domain.CacheEvent{})
	h.OnDiscard(context.Background(), &domain.CacheEvent{})

	assert.Equal(t, []string{"a", "b", "discard"}, order)
	assert.Nil(t, h.OnFetchStart)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug)
	h := observability.LogHooks(logger)
	ctx := context.Background()

	h.OnFetchDone(ctx, &domain.CacheEvent{Cache: "trajectory", Key: "{P1 0-100  xtc}", Err: errors.New("connection reset")})
	h.OnStatusChange(ctx, &domain.StatusChangeEvent{SessionID: "tab-1", From: domain.Idle(), To: domain.ViewerStatus{Status: domain.StatusLoading}})

	out := buf.String()
	assert.Contains(t, out, "Fetch failed")
	assert.Contains(t, out, "err=\"connection reset\"")
	assert.Contains(t, out, "session_id=tab-1")
}
