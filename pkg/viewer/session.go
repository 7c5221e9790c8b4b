package viewer

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
	"github.com/aretw0/trajview/pkg/compose"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/loader"
	"github.com/aretw0/trajview/pkg/memory"
	"github.com/aretw0/trajview/pkg/status"
)

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("viewer session closed")

// Session is the state of one rendering surface: the active subject, the
// active trajectory request, the composed source and the reduced status.
// Safe for concurrent use.
type Session struct {
	id           string
	selection    string
	structures   *loader.StructureLoader
	trajectories *loader.TrajectoryLoader
	memory       *memory.Memory
	reporter     *status.Reporter
	logger       *slog.Logger

	mu        sync.Mutex
	subject   domain.Subject
	request   *domain.TrajectoryRequest
	releases  []func()
	current   Snapshot
	published Snapshot
	watchers  map[chan Snapshot]struct{}
	closed    bool

	surface chan domain.StatusEvent
	stop    context.CancelFunc
	done    chan struct{}
}

// New creates a session with no subject and starts its listener.
func New(id string, structures *loader.StructureLoader, trajectories *loader.TrajectoryLoader, mem *memory.Memory, opts ...Option) *Session {
	o := options{logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		id:           id,
		selection:    o.selection,
		structures:   structures,
		trajectories: trajectories,
		memory:       mem,
		logger:       o.logger.With("session_id", id),
		reporter: status.NewReporter(o.surfaceFeedback,
			status.WithSessionID(id),
			status.WithHooks(o.hooks),
			status.WithLogger(o.logger),
			status.WithClock(o.now),
		),
		watchers: make(map[chan Snapshot]struct{}),
		surface:  make(chan domain.StatusEvent, 16),
		done:     make(chan struct{}),
	}
	s.current = Snapshot{SessionID: id, Source: domain.NoSource(), Status: domain.Idle()}
	s.published = s.current

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	structureChanges, cancelStructures := structures.Cache().Subscribe()
	trajectoryChanges, cancelTrajectories := trajectories.Cache().Subscribe()
	go func() {
		defer close(s.done)
		defer cancelStructures()
		defer cancelTrajectories()
		s.listen(ctx, structureChanges, trajectoryChanges)
	}()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetSubject switches the session to subject. The last trajectory request
// remembered for subject is restored; without one the trajectory view is
// cleared. An empty subject resets the session.
func (s *Session) SetSubject(ctx context.Context, subject domain.Subject) error {
	var restored *domain.TrajectoryRequest
	if !subject.IsZero() {
		req, ok, err := s.memory.Recall(ctx, subject)
		if err != nil {
			return fmt.Errorf("failed to recall trajectory request for %s: %w", subject, err)
		}
		if ok {
			restored = &req
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.subject = subject
	s.request = restored
	s.logger.Debug("Subject selected", "subject", subject, "restored_request", restored != nil)
	s.activateLocked()
	return nil
}

// RequestTrajectory records req for the active subject and starts loading it.
// Requesting a trajectory whose last fetch failed retries it.
func (s *Session) RequestTrajectory(ctx context.Context, req domain.TrajectoryRequest) error {
	s.mu.Lock()
	subject := s.subject
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if subject.IsZero() {
		return domain.ErrMissingSubject
	}

	if err := s.memory.Remember(ctx, subject, req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.subject != subject {
		// The subject changed while remembering; the request stays in memory for later.
		return nil
	}
	s.request = &req
	if res := s.trajectories.Peek(s.subject, s.request); res.Err != nil && !res.IsLoading {
		s.trajectories.Retry(s.subject, s.request)
	}
	s.activateLocked()
	return nil
}

// ClearTrajectory forgets the request of the active subject and returns the
// view to structure only.
func (s *Session) ClearTrajectory(ctx context.Context) error {
	s.mu.Lock()
	subject := s.subject
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if subject.IsZero() {
		return domain.ErrMissingSubject
	}

	if err := s.memory.Forget(ctx, subject); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.subject == subject {
		s.request = nil
		s.activateLocked()
	}
	return nil
}

// RetryTrajectory issues a new fetch generation for the active request.
func (s *Session) RetryTrajectory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.subject.IsZero() {
		return domain.ErrMissingSubject
	}
	if s.request == nil {
		return domain.ErrRequestNotFound
	}
	s.trajectories.Retry(s.subject, s.request)
	s.refreshLocked()
	return nil
}

// RetryStructure issues a new fetch generation for the active structure.
func (s *Session) RetryStructure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.subject.IsZero() {
		return domain.ErrMissingSubject
	}
	s.structures.Retry(s.subject, s.selection)
	s.refreshLocked()
	return nil
}

// ReportSurface feeds a rendering-surface status into the reporter.
func (s *Session) ReportSurface(ev domain.StatusEvent) error {
	if !ev.Status.Valid() {
		return fmt.Errorf("unknown surface status %q", ev.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if ev.Status == domain.StatusError {
		s.logger.Warn("Surface reported failure", "err", domain.SurfaceError(ev.Message))
	}
	s.reporter.Dispatch(status.SurfaceReported(ev))
	s.publishLocked()
	return nil
}

// Surface returns a channel the rendering surface may push status events to
// instead of calling ReportSurface. It must not be closed by the sender.
func (s *Session) Surface() chan<- domain.StatusEvent {
	return s.surface
}

// Snapshot returns the current view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Watch returns a channel that yields the current snapshot immediately and
// every subsequent change. Intermediate snapshots may be skipped for slow
// readers; the latest one is always delivered. The channel is closed when
// ctx is done or the session is closed.
func (s *Session) Watch(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	ch <- s.current
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}()
	return ch
}

// Close stops the listener, releases the observed cache entries and closes
// all watchers. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.releaseLocked()
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
	s.mu.Unlock()

	s.stop()
	<-s.done
	return nil
}

func (s *Session) listen(ctx context.Context, structureChanges *cache.Subscription[domain.StructureKey], trajectoryChanges *cache.Subscription[domain.TrajectoryKey]) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-structureChanges.Ready():
			keys := structureChanges.Drain()
			s.mu.Lock()
			if !s.closed && slices.Contains(keys, s.structures.Key(s.subject, s.selection)) {
				s.refreshLocked()
			}
			s.mu.Unlock()
		case <-trajectoryChanges.Ready():
			keys := trajectoryChanges.Drain()
			s.mu.Lock()
			if !s.closed && s.request != nil && slices.Contains(keys, s.trajectories.Key(s.subject, *s.request)) {
				s.refreshLocked()
			}
			s.mu.Unlock()
		case ev := <-s.surface:
			if err := s.ReportSurface(ev); err != nil && !errors.Is(err, ErrClosed) {
				s.logger.Warn("Ignoring surface event", "err", err)
			}
		}
	}
}

// activateLocked loads and retains the keys of the active subject and request,
// releasing the previous ones, then re-derives the view. Caller holds s.mu.
func (s *Session) activateLocked() {
	s.releaseLocked()
	if !s.subject.IsZero() {
		s.structures.Load(s.subject, s.selection)
		s.releases = append(s.releases, s.structures.Cache().Retain(s.structures.Key(s.subject, s.selection)))
		if s.request != nil {
			s.trajectories.Load(s.subject, s.request)
			s.releases = append(s.releases, s.trajectories.Cache().Retain(s.trajectories.Key(s.subject, *s.request)))
		}
	}
	s.refreshLocked()
}

func (s *Session) releaseLocked() {
	for _, release := range s.releases {
		release()
	}
	s.releases = nil
}

// refreshLocked re-derives the snapshot from the cache without starting fetches.
// Caller holds s.mu.
func (s *Session) refreshLocked() {
	structure := s.structures.Peek(s.subject, s.selection)
	trajectory := s.trajectories.Peek(s.subject, s.request)

	s.reporter.Dispatch(status.FetchObserved{
		Subject:    s.subject,
		Remembered: s.request != nil,
		Loading:    trajectory.IsLoading,
		Ready:      trajectory.Ready(),
		Err:        trajectory.Err,
		Generation: trajectory.Generation,
	})

	next := Snapshot{
		SessionID:        s.id,
		Subject:          s.subject,
		Source:           compose.Compose(s.subject, structure, trajectory),
		StructureLoading: structure.IsLoading,
	}
	if s.request != nil {
		req := *s.request
		next.Request = &req
	}
	if structure.Err != nil {
		next.StructureError = structure.Err.Error()
	}
	s.current = next
	s.publishLocked()
}

// publishLocked refreshes the status part of the snapshot and notifies
// watchers when the view changed. Caller holds s.mu.
func (s *Session) publishLocked() {
	s.current.Status = s.reporter.Current()
	if s.current.Equal(s.published) {
		return
	}
	s.published = s.current
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s.current
	}
}
