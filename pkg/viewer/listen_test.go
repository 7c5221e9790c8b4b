package viewer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/trajview/pkg/cache"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/loader"
	"github.com/aretw0/trajview/pkg/memory"
	"github.com/aretw0/trajview/pkg/ports"
	"github.com/stretchr/testify/require"
)

func TestListen_RederivesAfterBurstOfForeignChanges(t *testing.T) {
	gate := make(chan struct{})
	structures := loader.NewStructureLoader(
		cache.New[domain.StructureKey, domain.StructurePayload](),
		ports.StructureFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.StructureOptions) ([]byte, error) {
			return []byte("ATOM      1  N   MET A   1"), nil
		}),
	)
	trajectories := loader.NewTrajectoryLoader(
		cache.New[domain.TrajectoryKey, domain.TrajectoryPayload](cache.WithPolicy(cache.Policy{NeverStale: true})),
		ports.TrajectoryFetcherFunc(func(ctx context.Context, subject domain.Subject, opts ports.TrajectoryOptions) ([]byte, error) {
			if subject == "P1" {
				<-gate
			}
			return []byte("coords:" + string(subject)), nil
		}),
	)
	s := New("tab-1", structures, trajectories, memory.New(nil))
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	require.NoError(t, s.SetSubject(ctx, "P1"))
	require.Eventually(t, func() bool { return s.Snapshot().Source.Kind == domain.SourceStructure }, time.Second, time.Millisecond)
	req := domain.TrajectoryRequest{FrameRange: "0-100"}
	require.NoError(t, s.RequestTrajectory(ctx, req))
	require.Equal(t, domain.StatusLoading, s.Snapshot().Status.Status)

	// Keep the listener busy while other subjects flood the trajectory cache.
	s.mu.Lock()
	const others = 64
	for i := 0; i < others; i++ {
		trajectories.Load(domain.Subject(fmt.Sprintf("Q%d", i)), &req)
	}
	close(gate)
	require.Eventually(t, func() bool {
		if trajectories.Cache().Len() != others+1 {
			return false
		}
		e, _ := trajectories.Cache().Get(trajectories.Key("P1", req))
		return e.Status == cache.StatusReady
	}, time.Second, time.Millisecond)
	s.mu.Unlock()

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Source.Kind == domain.SourceTrajectory && snap.Status == domain.Idle()
	}, time.Second, time.Millisecond, "session must re-derive once its own key completed")
}
