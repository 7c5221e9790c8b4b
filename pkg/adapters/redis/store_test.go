package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/trajview/pkg/adapters/redis"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunRequestStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	subject := domain.Subject("P1")
	req := domain.TrajectoryRequest{FrameRange: "0-100", Selection: "protein"}

	err := store.Save(ctx, subject, req)
	assert.NoError(t, err)

	subjects, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, subjects, subject)

	// Key expiration is driven by miniredis' clock.
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, subject)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	// Index pruning compares against time.Now(), so real time has to pass too.
	time.Sleep(1200 * time.Millisecond)

	subjects, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, "P7", domain.TrajectoryRequest{Selection: "ligand"})
	assert.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:P7"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	raw, err := mr.Get("custom:app:P7")
	require.NoError(t, err)
	assert.JSONEq(t, `{"selection":"ligand"}`, raw)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	require.NoError(t, mr.Set(redis.DefaultPrefix+"P1", "{not json"))
	_, err := store.Load(context.Background(), "P1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRequestNotFound)
}
