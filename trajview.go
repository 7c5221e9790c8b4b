package trajview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/cache"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/loader"
	"github.com/aretw0/trajview/pkg/memory"
	"github.com/aretw0/trajview/pkg/ports"
	"github.com/aretw0/trajview/pkg/viewer"
	"golang.org/x/sync/errgroup"
)

// Default cache policies.
var (
	DefaultStructurePolicy  = cache.Policy{StaleAfter: 5 * time.Minute, Retention: 10 * time.Minute}
	DefaultTrajectoryPolicy = cache.Policy{NeverStale: true, Retention: 30 * time.Minute}
)

// DefaultJanitorInterval is how often Run sweeps the caches.
const DefaultJanitorInterval = time.Minute

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("viewer session not found")

// Engine is the high-level entry point. It owns the process-wide caches and
// the request memory, and hands out one viewer Session per rendering surface.
type Engine struct {
	structures   *loader.StructureLoader
	trajectories *loader.TrajectoryLoader
	memory       *memory.Memory

	store            ports.RequestStore
	locker           ports.DistributedLocker
	structurePolicy  cache.Policy
	trajectoryPolicy cache.Policy
	trajectoryFormat string
	janitorInterval  time.Duration
	surfaceFeedback  bool
	hooks            domain.LifecycleHooks
	logger           *slog.Logger
	now              func() time.Time

	mu       sync.RWMutex
	sessions map[string]*viewer.Session
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRequestStore persists remembered trajectory requests in store instead of memory.
func WithRequestStore(store ports.RequestStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes request writes across processes sharing a store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithStructurePolicy overrides the structure cache policy.
func WithStructurePolicy(p cache.Policy) Option {
	return func(e *Engine) {
		e.structurePolicy = p
	}
}

// WithTrajectoryPolicy overrides the trajectory cache policy.
func WithTrajectoryPolicy(p cache.Policy) Option {
	return func(e *Engine) {
		e.trajectoryPolicy = p
	}
}

// WithTrajectoryFormat sets the coordinate format requested from the trajectory service.
func WithTrajectoryFormat(format string) Option {
	return func(e *Engine) {
		e.trajectoryFormat = format
	}
}

// WithJanitorInterval sets how often Run sweeps the caches.
func WithJanitorInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.janitorInterval = d
	}
}

// WithSurfaceFeedback makes new sessions wait for the surface to report readiness.
func WithSurfaceFeedback(enabled bool) Option {
	return func(e *Engine) {
		e.surfaceFeedback = enabled
	}
}

// WithHooks registers observability hooks for caches and sessions.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the clock used by caches and sessions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New initializes an Engine around the two fetch collaborators.
func New(structures ports.StructureFetcher, trajectories ports.TrajectoryFetcher, opts ...Option) (*Engine, error) {
	if structures == nil || trajectories == nil {
		return nil, fmt.Errorf("both a structure and a trajectory fetcher are required")
	}

	eng := &Engine{
		structurePolicy:  DefaultStructurePolicy,
		trajectoryPolicy: DefaultTrajectoryPolicy,
		trajectoryFormat: domain.DefaultTrajectoryFormat,
		janitorInterval:  DefaultJanitorInterval,
		now:              time.Now,
		sessions:         make(map[string]*viewer.Session),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.now == nil {
		eng.now = time.Now
	}

	cacheOpts := func(name string, p cache.Policy) []cache.Option {
		return []cache.Option{
			cache.WithName(name),
			cache.WithPolicy(p),
			cache.WithClock(eng.now),
			cache.WithHooks(eng.hooks),
			cache.WithLogger(eng.logger.With("cache", name)),
		}
	}

	eng.structures = loader.NewStructureLoader(
		cache.New[domain.StructureKey, domain.StructurePayload](cacheOpts("structure", eng.structurePolicy)...),
		structures,
		loader.WithLogger(eng.logger),
	)
	eng.trajectories = loader.NewTrajectoryLoader(
		cache.New[domain.TrajectoryKey, domain.TrajectoryPayload](cacheOpts("trajectory", eng.trajectoryPolicy)...),
		trajectories,
		loader.WithLogger(eng.logger),
		loader.WithFormat(eng.trajectoryFormat),
	)

	memOpts := []memory.Option{memory.WithLogger(eng.logger)}
	if eng.locker != nil {
		memOpts = append(memOpts, memory.WithLocker(eng.locker))
	}
	eng.memory = memory.New(eng.store, memOpts...)

	return eng, nil
}

// Session returns the session for id, creating it on first use.
// Options only apply when the session is created.
func (e *Engine) Session(id string, opts ...viewer.Option) *viewer.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[id]; ok {
		return s
	}

	base := []viewer.Option{
		viewer.WithLogger(e.logger),
		viewer.WithHooks(e.hooks),
		viewer.WithClock(e.now),
		viewer.WithSurfaceFeedback(e.surfaceFeedback),
	}
	s := viewer.New(id, e.structures, e.trajectories, e.memory, append(base, opts...)...)
	e.sessions[id] = s
	e.logger.Debug("Viewer session created", "session_id", id)
	return s
}

// LookupSession returns an existing session.
func (e *Engine) LookupSession(id string) (*viewer.Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	return s, ok
}

// CloseSession closes and forgets the session for id. Remembered requests are kept.
func (e *Engine) CloseSession(id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.logger.Debug("Viewer session closed", "session_id", id)
	return s.Close()
}

// Sessions returns the ids of the open sessions, sorted.
func (e *Engine) Sessions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Run sweeps both caches until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.structures.Cache().RunJanitor(ctx, e.janitorInterval) })
	g.Go(func() error { return e.trajectories.Cache().RunJanitor(ctx, e.janitorInterval) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Memory returns the request memory shared by all sessions.
func (e *Engine) Memory() *memory.Memory {
	return e.memory
}

// Structures returns the structure loader shared by all sessions.
func (e *Engine) Structures() *loader.StructureLoader {
	return e.structures
}

// Trajectories returns the trajectory loader shared by all sessions.
func (e *Engine) Trajectories() *loader.TrajectoryLoader {
	return e.trajectories
}

// Close closes every session.
func (e *Engine) Close() error {
	e.mu.Lock()
	sessions := e.sessions
	e.sessions = make(map[string]*viewer.Session)
	e.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
