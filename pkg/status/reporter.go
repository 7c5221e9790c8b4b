package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/domain"
)

// Reporter owns a reducer state and notifies hooks when the reduced status changes.
// Safe for concurrent use.
type Reporter struct {
	sessionID string
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	state State
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithSessionID tags status change events.
func WithSessionID(id string) Option {
	return func(r *Reporter) {
		r.sessionID = id
	}
}

// WithHooks registers lifecycle hooks. Only OnStatusChange is used.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Reporter) {
		r.hooks = hooks
	}
}

// WithLogger sets the reporter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the timestamp source of status change events.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReporter creates a reporter in the idle state.
func NewReporter(surfaceWired bool, opts ...Option) *Reporter {
	r := &Reporter{
		logger: logging.NewNop(),
		now:    time.Now,
		state:  NewState(surfaceWired),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns the reduced status.
func (r *Reporter) Current() domain.ViewerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.View
}

// Dispatch reduces ev and returns the resulting status.
func (r *Reporter) Dispatch(ev Event) domain.ViewerStatus {
	r.mu.Lock()
	from := r.state.View
	r.state = Reduce(r.state, ev)
	to := r.state.View
	r.mu.Unlock()

	if from != to {
		r.logger.Debug("Viewer status changed",
			"session_id", r.sessionID,
			"from", from.Status,
			"to", to.Status,
			"message", to.Message,
		)
		if r.hooks.OnStatusChange != nil {
			r.hooks.OnStatusChange(context.Background(), &domain.StatusChangeEvent{
				EventBase: domain.EventBase{Timestamp: r.now(), Type: domain.EventStatusChange},
				SessionID: r.sessionID,
				From:      from,
				To:        to,
			})
		}
	}
	return to
}
