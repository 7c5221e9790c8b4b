package loader

import (
	"context"
	"log/slog"

	"github.com/aretw0/trajview/pkg/cache"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/ports"
)

// TrajectoryCache is the cache type shared by trajectory loaders.
type TrajectoryCache = cache.Cache[domain.TrajectoryKey, domain.TrajectoryPayload]

// TrajectoryLoader fetches trajectory segments through a shared cache.
// Every key carries the loader's fixed coordinate format.
type TrajectoryLoader struct {
	cache   *TrajectoryCache
	fetcher ports.TrajectoryFetcher
	format  string
	logger  *slog.Logger
}

// NewTrajectoryLoader creates a loader on top of c.
func NewTrajectoryLoader(c *TrajectoryCache, fetcher ports.TrajectoryFetcher, opts ...Option) *TrajectoryLoader {
	s := newSettings(domain.DefaultTrajectoryFormat, opts)
	return &TrajectoryLoader{
		cache:   c,
		fetcher: fetcher,
		format:  s.format,
		logger:  s.logger,
	}
}

// Cache returns the underlying cache.
func (l *TrajectoryLoader) Cache() *TrajectoryCache {
	return l.cache
}

// Format returns the coordinate format requested from the collaborator.
func (l *TrajectoryLoader) Format() string {
	return l.format
}

// Key returns the cache key for a subject and request.
func (l *TrajectoryLoader) Key(subject domain.Subject, req domain.TrajectoryRequest) domain.TrajectoryKey {
	return req.Key(subject, l.format)
}

// Load starts a fetch when needed and returns the current state without waiting.
// It is disabled (zero Result) when subject is empty or req is nil.
func (l *TrajectoryLoader) Load(subject domain.Subject, req *domain.TrajectoryRequest) Result[domain.TrajectoryPayload] {
	if subject.IsZero() || req == nil {
		return Result[domain.TrajectoryPayload]{}
	}
	return fromEntry(l.cache.Ensure(l.Key(subject, *req), l.produce))
}

// Peek returns the current state without triggering a fetch.
func (l *TrajectoryLoader) Peek(subject domain.Subject, req *domain.TrajectoryRequest) Result[domain.TrajectoryPayload] {
	if subject.IsZero() || req == nil {
		return Result[domain.TrajectoryPayload]{}
	}
	e, _ := l.cache.Get(l.Key(subject, *req))
	return fromEntry(e)
}

// Await loads and waits for the outcome.
func (l *TrajectoryLoader) Await(ctx context.Context, subject domain.Subject, req domain.TrajectoryRequest) (domain.TrajectoryPayload, error) {
	if subject.IsZero() {
		return domain.TrajectoryPayload{}, domain.ErrMissingSubject
	}
	return l.cache.FetchIfNeeded(ctx, l.Key(subject, req), l.produce)
}

// Retry issues a new fetch generation for the request. Retrying is always an
// explicit caller decision; failures are never retried automatically.
func (l *TrajectoryLoader) Retry(subject domain.Subject, req *domain.TrajectoryRequest) Result[domain.TrajectoryPayload] {
	if subject.IsZero() || req == nil {
		return Result[domain.TrajectoryPayload]{}
	}
	key := l.Key(subject, *req)
	l.cache.Restart(key, l.produce)
	e, _ := l.cache.Get(key)
	return fromEntry(e)
}

func (l *TrajectoryLoader) produce(ctx context.Context, key domain.TrajectoryKey) (domain.TrajectoryPayload, error) {
	data, err := l.fetcher.FetchTrajectory(ctx, key.Subject, ports.TrajectoryOptions{
		Format:     key.Format,
		FrameRange: ports.Optional(key.FrameRange),
		Selection:  ports.Optional(key.Selection),
	})
	if err != nil {
		return domain.TrajectoryPayload{}, asFetchError("trajectory", key.Subject, err)
	}

	l.logger.Debug("Fetched trajectory segment",
		"subject", key.Subject,
		"frame_range", key.FrameRange,
		"selection", key.Selection,
		"size", len(data),
	)
	return domain.TrajectoryPayload{
		Subject: key.Subject,
		Data:    data,
		Format:  key.Format,
		Label:   domain.Label(key.Subject, key.Format),
	}, nil
}
