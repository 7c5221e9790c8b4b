package ports

import (
	"context"

	"github.com/aretw0/trajview/pkg/domain"
)

// StructureOptions are the optional parameters of a structure fetch.
// A nil field is "unset" and must not be transmitted.
type StructureOptions struct {
	Selection *string
}

// TrajectoryOptions are the parameters of a trajectory fetch.
type TrajectoryOptions struct {
	Format     string
	FrameRange *string
	Selection  *string
}

// StructureFetcher retrieves the raw structure payload of a subject.
// The payload may be text or a binary (e.g. compressed) encoding of text.
type StructureFetcher interface {
	FetchStructure(ctx context.Context, subject domain.Subject, opts StructureOptions) ([]byte, error)
}

// TrajectoryFetcher retrieves a binary coordinate payload for a subject.
type TrajectoryFetcher interface {
	FetchTrajectory(ctx context.Context, subject domain.Subject, opts TrajectoryOptions) ([]byte, error)
}

// StructureFetcherFunc adapts a function to StructureFetcher.
type StructureFetcherFunc func(ctx context.Context, subject domain.Subject, opts StructureOptions) ([]byte, error)

// FetchStructure calls f.
func (f StructureFetcherFunc) FetchStructure(ctx context.Context, subject domain.Subject, opts StructureOptions) ([]byte, error) {
	return f(ctx, subject, opts)
}

// TrajectoryFetcherFunc adapts a function to TrajectoryFetcher.
type TrajectoryFetcherFunc func(ctx context.Context, subject domain.Subject, opts TrajectoryOptions) ([]byte, error)

// FetchTrajectory calls f.
func (f TrajectoryFetcherFunc) FetchTrajectory(ctx context.Context, subject domain.Subject, opts TrajectoryOptions) ([]byte, error) {
	return f(ctx, subject, opts)
}

// Optional turns an empty string into "unset".
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
