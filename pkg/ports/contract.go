package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/trajview/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRequestStoreContract runs a suite of tests to verify that a RequestStore implementation
// adheres to the defined interface contract.
func RunRequestStoreContract(t *testing.T, store RequestStore) {
	ctx := context.Background()
	subject := domain.Subject("contract-" + time.Now().Format("20060102150405.000000000"))

	t.Run("Save and Load", func(t *testing.T) {
		req := domain.TrajectoryRequest{FrameRange: "0-100", Selection: "protein"}

		err := store.Save(ctx, subject, req)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, subject)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, req, loaded)
	})

	t.Run("Last Save Wins", func(t *testing.T) {
		r1 := domain.TrajectoryRequest{FrameRange: "0-10"}
		r2 := domain.TrajectoryRequest{FrameRange: "10-20", Selection: "backbone"}
		require.NoError(t, store.Save(ctx, subject, r1))
		require.NoError(t, store.Save(ctx, subject, r2))

		loaded, err := store.Load(ctx, subject)
		require.NoError(t, err)
		assert.Equal(t, r2, loaded)
	})

	t.Run("Zero Request Is Remembered", func(t *testing.T) {
		id := subject + "-zero"
		require.NoError(t, store.Save(ctx, id, domain.TrajectoryRequest{}))
		defer func() { _ = store.Delete(ctx, id) }()

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.True(t, loaded.IsZero())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+subject)
		assert.ErrorIs(t, err, domain.ErrRequestNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, subject, domain.TrajectoryRequest{Selection: "ligand"}))

		err := store.Delete(ctx, subject)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, subject)
		assert.ErrorIs(t, err, domain.ErrRequestNotFound, "Load after Delete should return ErrRequestNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := subject + "-1"
		id2 := subject + "-2"
		_ = store.Save(ctx, id1, domain.TrajectoryRequest{FrameRange: "0-1"})
		_ = store.Save(ctx, id2, domain.TrajectoryRequest{FrameRange: "0-2"})

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		subjects, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, subjects, id1)
		assert.Contains(t, subjects, id2)
	})
}
