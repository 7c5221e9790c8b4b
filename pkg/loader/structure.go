package loader

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/trajview/pkg/cache"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/ports"
)

// StructureCache is the cache type shared by structure loaders.
type StructureCache = cache.Cache[domain.StructureKey, domain.StructurePayload]

// StructureLoader fetches and decodes structure payloads through a shared cache.
type StructureLoader struct {
	cache   *StructureCache
	fetcher ports.StructureFetcher
	format  string
	logger  *slog.Logger
}

// NewStructureLoader creates a loader on top of c.
func NewStructureLoader(c *StructureCache, fetcher ports.StructureFetcher, opts ...Option) *StructureLoader {
	s := newSettings(domain.DefaultStructureFormat, opts)
	return &StructureLoader{
		cache:   c,
		fetcher: fetcher,
		format:  s.format,
		logger:  s.logger,
	}
}

// Cache returns the underlying cache.
func (l *StructureLoader) Cache() *StructureCache {
	return l.cache
}

// Key returns the cache key for a subject and selection.
func (l *StructureLoader) Key(subject domain.Subject, selection string) domain.StructureKey {
	return domain.StructureKey{Subject: subject, Selection: selection}
}

// Load starts a fetch when needed and returns the current state without waiting.
// It is disabled (zero Result) when subject is empty.
func (l *StructureLoader) Load(subject domain.Subject, selection string) Result[domain.StructurePayload] {
	if subject.IsZero() {
		return Result[domain.StructurePayload]{}
	}
	return fromEntry(l.cache.Ensure(l.Key(subject, selection), l.produce))
}

// Peek returns the current state without triggering a fetch.
func (l *StructureLoader) Peek(subject domain.Subject, selection string) Result[domain.StructurePayload] {
	if subject.IsZero() {
		return Result[domain.StructurePayload]{}
	}
	e, _ := l.cache.Get(l.Key(subject, selection))
	return fromEntry(e)
}

// Await loads and waits for the outcome.
func (l *StructureLoader) Await(ctx context.Context, subject domain.Subject, selection string) (domain.StructurePayload, error) {
	if subject.IsZero() {
		return domain.StructurePayload{}, domain.ErrMissingSubject
	}
	return l.cache.FetchIfNeeded(ctx, l.Key(subject, selection), l.produce)
}

// Retry issues a new fetch generation regardless of the cached state.
func (l *StructureLoader) Retry(subject domain.Subject, selection string) Result[domain.StructurePayload] {
	if subject.IsZero() {
		return Result[domain.StructurePayload]{}
	}
	key := l.Key(subject, selection)
	l.cache.Restart(key, l.produce)
	e, _ := l.cache.Get(key)
	return fromEntry(e)
}

func (l *StructureLoader) produce(ctx context.Context, key domain.StructureKey) (domain.StructurePayload, error) {
	raw, err := l.fetcher.FetchStructure(ctx, key.Subject, ports.StructureOptions{
		Selection: ports.Optional(key.Selection),
	})
	if err != nil {
		return domain.StructurePayload{}, asFetchError("structure", key.Subject, err)
	}

	text, lossy, err := Decode(raw)
	switch {
	case err != nil:
		l.logger.Warn("Structure payload could not be decoded, using empty text",
			"subject", key.Subject,
			"size", len(raw),
			"err", err,
		)
		text = ""
	case lossy:
		l.logger.Warn("Structure payload is not valid UTF-8, invalid bytes replaced",
			"subject", key.Subject,
			"size", len(raw),
		)
	}

	return domain.StructurePayload{
		Subject: key.Subject,
		Text:    text,
		Format:  l.format,
		Label:   domain.Label(key.Subject, l.format),
	}, nil
}

// asFetchError wraps collaborator errors that do not already carry fetch context.
func asFetchError(op string, subject domain.Subject, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &domain.FetchError{Op: op, Subject: subject, Err: err}
}
