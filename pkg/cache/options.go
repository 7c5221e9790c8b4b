package cache

import (
	"log/slog"
	"time"

	"github.com/aretw0/trajview/pkg/domain"
)

type options struct {
	name   string
	policy Policy
	now    func() time.Time
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithName labels the cache in events, metrics and logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithPolicy sets the freshness policy.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithHooks registers observability hooks. Only the cache callbacks are used.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithLogger sets a structured logger for the cache.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
