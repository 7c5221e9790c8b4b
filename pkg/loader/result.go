package loader

import (
	"log/slog"

	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/cache"
)

// Result is what a loader exposes for one key: the value if any, whether a
// fetch is outstanding, and the last fetch error.
type Result[T any] struct {
	Value      T
	HasValue   bool
	IsLoading  bool
	Err        error
	Generation uint64
}

// Ready reports whether the result holds a value from a completed, successful fetch.
func (r Result[T]) Ready() bool {
	return r.HasValue && !r.IsLoading && r.Err == nil
}

func fromEntry[T any](e cache.Entry[T]) Result[T] {
	return Result[T]{
		Value:      e.Value,
		HasValue:   e.HasValue,
		IsLoading:  e.IsLoading(),
		Err:        e.Err,
		Generation: e.Generation,
	}
}

type settings struct {
	logger *slog.Logger
	format string
}

// Option configures a loader.
type Option func(*settings)

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFormat overrides the payload format tag (structure) or the requested
// coordinate format (trajectory).
func WithFormat(format string) Option {
	return func(s *settings) {
		if format != "" {
			s.format = format
		}
	}
}

func newSettings(format string, opts []Option) settings {
	s := settings{logger: logging.NewNop(), format: format}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
