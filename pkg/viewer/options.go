package viewer

import (
	"log/slog"
	"time"

	"github.com/aretw0/trajview/pkg/domain"
)

type options struct {
	selection       string
	surfaceFeedback bool
	logger          *slog.Logger
	hooks           domain.LifecycleHooks
	now             func() time.Time
}

// Option configures a Session.
type Option func(*options)

// WithSelection restricts structure fetches to a selection expression.
func WithSelection(selection string) Option {
	return func(o *options) {
		o.selection = selection
	}
}

// WithSurfaceFeedback declares that the surface reports its own readiness.
// Without it, a ready trajectory is assumed rendered as soon as it arrives.
func WithSurfaceFeedback(enabled bool) Option {
	return func(o *options) {
		o.surfaceFeedback = enabled
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHooks registers lifecycle hooks for status changes.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
