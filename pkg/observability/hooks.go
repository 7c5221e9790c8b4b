package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/trajview/pkg/domain"
)

// LogHooks returns lifecycle hooks that log every event with logger.
// Fetch failures are logged at warn level, everything else at debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	cacheEvent := func(msg string) func(context.Context, *domain.CacheEvent) {
		return func(ctx context.Context, e *domain.CacheEvent) {
			logger.DebugContext(ctx, msg, "cache", e.Cache, "key", e.Key, "generation", e.Generation)
		}
	}
	return domain.LifecycleHooks{
		OnFetchStart: cacheEvent("Fetch started"),
		OnFetchDone: func(ctx context.Context, e *domain.CacheEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "Fetch failed",
					"cache", e.Cache,
					"key", e.Key,
					"generation", e.Generation,
					"duration", e.Duration,
					"err", e.Err,
				)
				return
			}
			logger.DebugContext(ctx, "Fetch completed",
				"cache", e.Cache,
				"key", e.Key,
				"generation", e.Generation,
				"duration", e.Duration,
			)
		},
		OnCoalesced: cacheEvent("Joined in-flight fetch"),
		OnDiscard:   cacheEvent("Discarded superseded fetch"),
		OnEvict:     cacheEvent("Evicted cache entry"),
		OnStatusChange: func(ctx context.Context, e *domain.StatusChangeEvent) {
			logger.InfoContext(ctx, "Viewer status changed",
				"session_id", e.SessionID,
				"from", e.From.Status,
				"to", e.To.Status,
				"message", e.To.Message,
			)
		},
	}
}

// Chain combines several hook sets into one. Hooks run in the given order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnFetchStart = chainCache(out.OnFetchStart, h.OnFetchStart)
		out.OnFetchDone = chainCache(out.OnFetchDone, h.OnFetchDone)
		out.OnCoalesced = chainCache(out.OnCoalesced, h.OnCoalesced)
		out.OnDiscard = chainCache(out.OnDiscard, h.OnDiscard)
		out.OnEvict = chainCache(out.OnEvict, h.OnEvict)
		out.OnStatusChange = chainStatus(out.OnStatusChange, h.OnStatusChange)
	}
	return out
}

func chainCache(a, b func(context.Context, *domain.CacheEvent)) func(context.Context, *domain.CacheEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *domain.CacheEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainStatus(a, b func(context.Context, *domain.StatusChangeEvent)) func(context.Context, *domain.StatusChangeEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *domain.StatusChangeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
