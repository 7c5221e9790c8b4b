package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/trajview/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces request memory keys.
const DefaultPrefix = "trajview:request:"

// Store implements ports.RequestStore using Redis, so that several server
// replicas behind one browser session share what each subject last requested.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL bounds how long a remembered request survives (the viewer session lifetime).
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(subject domain.Subject) string {
	return s.prefix + string(subject)
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the request as JSON and indexes the subject.
func (s *Store) Save(ctx context.Context, subject domain.Subject, req domain.TrajectoryRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(subject), data, s.ttl)

	// Index score is the expiry time so List can prune lazily.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: string(subject),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the request for a subject.
func (s *Store) Load(ctx context.Context, subject domain.Subject) (domain.TrajectoryRequest, error) {
	val, err := s.client.Get(ctx, s.key(subject)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.TrajectoryRequest{}, domain.ErrRequestNotFound
		}
		return domain.TrajectoryRequest{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var req domain.TrajectoryRequest
	if err := json.Unmarshal(val, &req); err != nil {
		return domain.TrajectoryRequest{}, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return req, nil
}

// Delete forgets the request.
func (s *Store) Delete(ctx context.Context, subject domain.Subject) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(subject))
	pipe.ZRem(ctx, s.indexKey(), string(subject))

	_, err := pipe.Exec(ctx)
	return err
}

// List returns subjects with a live request, pruning expired index members first.
func (s *Store) List(ctx context.Context) ([]domain.Subject, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired requests: %w", err)
	}

	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	subjects := make([]domain.Subject, len(members))
	for i, m := range members {
		subjects[i] = domain.Subject(m)
	}
	return subjects, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
