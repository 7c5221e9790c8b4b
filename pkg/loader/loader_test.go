package loader_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/trajview/pkg/cache"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/loader"
	"github.com/aretw0/trajview/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pdbText = "ATOM      1  CA  GLY A   1       0.000   0.000   0.000\nEND\n"

func TestStructureLoader_LoadsAndLabels(t *testing.T) {
	var calls atomic.Int32
	var gotSelection *string
	fetcher := ports.StructureFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.StructureOptions) ([]byte, error) {
		calls.Add(1)
		gotSelection = opts.Selection
		return []byte(pdbText), nil
	})
	l := loader.NewStructureLoader(cache.New[domain.StructureKey, domain.StructurePayload](), fetcher)

	p, err := l.Await(context.Background(), "P1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StructurePayload{Subject: "P1", Text: pdbText, Format: "pdb", Label: "P1.pdb"}, p)
	assert.Nil(t, gotSelection, "empty selection is passed as absent")

	res := l.Load("P1", "")
	assert.True(t, res.Ready())
	assert.Equal(t, int32(1), calls.Load(), "fresh payload is served from cache")
}

func TestStructureLoader_DisabledWithoutSubject(t *testing.T) {
	fetcher := ports.StructureFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.StructureOptions) ([]byte, error) {
		t.Fatal("fetcher must not be called")
		return nil, nil
	})
	l := loader.NewStructureLoader(cache.New[domain.StructureKey, domain.StructurePayload](), fetcher)

	res := l.Load("", "")
	assert.False(t, res.HasValue)
	assert.False(t, res.IsLoading)

	_, err := l.Await(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrMissingSubject)
}

func TestStructureLoader_UndecodablePayloadBecomesEmptyText(t *testing.T) {
	fetcher := ports.StructureFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.StructureOptions) ([]byte, error) {
		return []byte{0x1f, 0x8b, 0x08}, nil
	})
	l := loader.NewStructureLoader(cache.New[domain.StructureKey, domain.StructurePayload](), fetcher)

	p, err := l.Await(context.Background(), "P1", "")
	require.NoError(t, err)
	assert.Empty(t, p.Text)
	assert.Equal(t, "P1.pdb", p.Label)
}

func TestStructureLoader_InvalidUTF8KeepsText(t *testing.T) {
	fetcher := ports.StructureFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.StructureOptions) ([]byte, error) {
		return []byte("HEADER    caf\xe9 complex\nEND\n"), nil
	})
	l := loader.NewStructureLoader(cache.New[domain.StructureKey, domain.StructurePayload](), fetcher)

	p, err := l.Await(context.Background(), "P1", "")
	require.NoError(t, err)
	assert.Equal(t, "HEADER    caf\uFFFD complex\nEND\n", p.Text)
}

func TestStructureLoader_TransportErrorIsFetchError(t *testing.T) {
	boom := errors.New("connection refused")
	fetcher := ports.StructureFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.StructureOptions) ([]byte, error) {
		return nil, boom
	})
	l := loader.NewStructureLoader(cache.New[domain.StructureKey, domain.StructurePayload](), fetcher)

	_, err := l.Await(context.Background(), "P1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailure)
	assert.ErrorIs(t, err, boom)

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "structure", fe.Op)
	assert.Equal(t, domain.Subject("P1"), fe.Subject)

	res := l.Peek("P1", "")
	assert.False(t, res.HasValue)
	assert.Error(t, res.Err)
}

func TestTrajectoryLoader_DisabledWithoutRequest(t *testing.T) {
	fetcher := ports.TrajectoryFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.TrajectoryOptions) ([]byte, error) {
		t.Fatal("fetcher must not be called")
		return nil, nil
	})
	l := loader.NewTrajectoryLoader(cache.New[domain.TrajectoryKey, domain.TrajectoryPayload](), fetcher)

	res := l.Load("P1", nil)
	assert.False(t, res.HasValue)
	assert.False(t, res.IsLoading)
	assert.Equal(t, 0, l.Cache().Len())
}

func TestTrajectoryLoader_NormalizesOptions(t *testing.T) {
	var got ports.TrajectoryOptions
	fetcher := ports.TrajectoryFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.TrajectoryOptions) ([]byte, error) {
		got = opts
		return []byte{1, 2, 3, 4}, nil
	})
	l := loader.NewTrajectoryLoader(cache.New[domain.TrajectoryKey, domain.TrajectoryPayload](), fetcher)

	p, err := l.Await(context.Background(), "P1", domain.TrajectoryRequest{FrameRange: "0-100"})
	require.NoError(t, err)
	assert.Equal(t, "xtc", got.Format)
	require.NotNil(t, got.FrameRange)
	assert.Equal(t, "0-100", *got.FrameRange)
	assert.Nil(t, got.Selection)

	assert.Equal(t, []byte{1, 2, 3, 4}, p.Data)
	assert.Equal(t, "P1.xtc", p.Label)
	assert.Equal(t, "xtc", p.Format)
}

func TestTrajectoryLoader_WithFormat(t *testing.T) {
	var got string
	fetcher := ports.TrajectoryFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.TrajectoryOptions) ([]byte, error) {
		got = opts.Format
		return []byte{0}, nil
	})
	l := loader.NewTrajectoryLoader(cache.New[domain.TrajectoryKey, domain.TrajectoryPayload](), fetcher, loader.WithFormat("dcd"))

	p, err := l.Await(context.Background(), "P1", domain.TrajectoryRequest{})
	require.NoError(t, err)
	assert.Equal(t, "dcd", got)
	assert.Equal(t, "P1.dcd", p.Label)
	assert.Equal(t, "dcd", l.Format())
}

func TestTrajectoryLoader_RequestRoundTripServedFromCache(t *testing.T) {
	var calls atomic.Int32
	fetcher := ports.TrajectoryFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.TrajectoryOptions) ([]byte, error) {
		calls.Add(1)
		return []byte(subject), nil
	})
	c := cache.New[domain.TrajectoryKey, domain.TrajectoryPayload](cache.WithPolicy(cache.Policy{NeverStale: true}))
	l := loader.NewTrajectoryLoader(c, fetcher)
	ctx := context.Background()
	req := domain.TrajectoryRequest{FrameRange: "0-100"}

	_, err := l.Await(ctx, "P1", req)
	require.NoError(t, err)
	_, err = l.Await(ctx, "P2", req)
	require.NoError(t, err)

	res := l.Load("P1", &req)
	assert.True(t, res.Ready())
	assert.Equal(t, []byte("P1"), res.Value.Data)
	assert.Equal(t, int32(2), calls.Load(), "returning to a subject must not refetch")
}

func TestTrajectoryLoader_RetryStartsNewGeneration(t *testing.T) {
	var mu sync.Mutex
	fail := true
	fetcher := ports.TrajectoryFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.TrajectoryOptions) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, &domain.FetchError{Op: "trajectory", Subject: subject, StatusCode: 502, Err: errors.New("bad gateway")}
		}
		return []byte{9}, nil
	})
	l := loader.NewTrajectoryLoader(cache.New[domain.TrajectoryKey, domain.TrajectoryPayload](), fetcher)
	req := domain.TrajectoryRequest{}

	_, err := l.Await(context.Background(), "P1", req)
	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 502, fe.StatusCode, "collaborator fetch errors are kept as is")

	failed := l.Peek("P1", &req)
	require.Error(t, failed.Err)

	mu.Lock()
	fail = false
	mu.Unlock()

	res := l.Retry("P1", &req)
	assert.Greater(t, res.Generation, failed.Generation)
	require.Eventually(t, func() bool { return l.Peek("P1", &req).Ready() }, time.Second, time.Millisecond)
}
