package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/adapters/inmemory"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Memory remembers the most recent trajectory request per subject.
// It uses reference counting to garbage collect unused per-subject locks.
type Memory struct {
	store ports.RequestStore

	mu    sync.Mutex                    // Global lock for the map
	locks map[domain.Subject]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Memory.
type Option func(*Memory)

// WithLocker enables distributed locking for writes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Memory) {
		m.locker = locker
	}
}

// WithLockTTL bounds how long a distributed lock is held if its owner dies.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Memory) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Memory.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Request Memory on top of store. A nil store means in-process memory.
func New(store ports.RequestStore, opts ...Option) *Memory {
	if store == nil {
		store = inmemory.NewStore()
	}
	m := &Memory{
		store:   store,
		locks:   make(map[domain.Subject]*lockEntry),
		lockTTL: 10 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Remember records req as the last trajectory request for subject.
func (m *Memory) Remember(ctx context.Context, subject domain.Subject, req domain.TrajectoryRequest) error {
	if subject.IsZero() {
		return domain.ErrMissingSubject
	}
	return m.withWriteLock(ctx, subject, func(ctx context.Context) error {
		if err := m.store.Save(ctx, subject, req); err != nil {
			return fmt.Errorf("failed to remember request: %w", err)
		}
		m.logger.Debug("Remembered trajectory request",
			"subject", subject,
			"frame_range", req.FrameRange,
			"selection", req.Selection,
		)
		return nil
	})
}

// Recall returns the last request remembered for subject. The boolean is false
// when nothing is remembered; the caller must then clear its active request
// rather than substitute a default.
func (m *Memory) Recall(ctx context.Context, subject domain.Subject) (domain.TrajectoryRequest, bool, error) {
	if subject.IsZero() {
		return domain.TrajectoryRequest{}, false, nil
	}

	var (
		req   domain.TrajectoryRequest
		found bool
	)
	err := m.withLocalLock(subject, func() error {
		var err error
		req, err = m.store.Load(ctx, subject)
		if errors.Is(err, domain.ErrRequestNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to recall request: %w", err)
		}
		found = true
		return nil
	})
	return req, found, err
}

// Forget removes the remembered request for subject.
func (m *Memory) Forget(ctx context.Context, subject domain.Subject) error {
	if subject.IsZero() {
		return domain.ErrMissingSubject
	}
	return m.withWriteLock(ctx, subject, func(ctx context.Context) error {
		return m.store.Delete(ctx, subject)
	})
}

// List delegates to the store.
func (m *Memory) List(ctx context.Context) ([]domain.Subject, error) {
	return m.store.List(ctx)
}

// Store returns the underlying request store.
func (m *Memory) Store() ports.RequestStore {
	return m.store
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(subject) after unlocking.
func (m *Memory) acquire(subject domain.Subject) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[subject]
	if !exists {
		entry = &lockEntry{}
		m.locks[subject] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Memory) release(subject domain.Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[subject]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, subject)
	}
}

func (m *Memory) withLocalLock(subject domain.Subject, fn func() error) error {
	entry := m.acquire(subject)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(subject)
	}()
	return fn()
}

// withWriteLock executes fn while holding the local lock for subject and, if
// configured, the distributed lock.
func (m *Memory) withWriteLock(ctx context.Context, subject domain.Subject, fn func(context.Context) error) error {
	return m.withLocalLock(subject, func() error {
		if m.locker != nil {
			unlock, err := m.locker.Lock(ctx, string(subject), m.lockTTL)
			if err != nil {
				return fmt.Errorf("failed to acquire distributed lock: %w", err)
			}
			defer func() {
				if err := unlock(ctx); err != nil {
					m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
						"subject", subject,
						"err", err,
					)
				}
			}()
		}
		return fn(ctx)
	})
}
