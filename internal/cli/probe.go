package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/trajview"
	"github.com/aretw0/trajview/internal/presentation/graph"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/viewer"
)

// ProbeSessionID is the session used by one-shot probes.
const ProbeSessionID = "probe"

// ProbeOptions describes a one-shot load.
type ProbeOptions struct {
	Subject domain.Subject
	Request *domain.TrajectoryRequest // nil probes the structure only
	Timeout time.Duration
}

// Probe loads a subject (and optionally a trajectory) through the shared
// caches, then composes it in a throwaway session and returns the snapshot
// once nothing is loading anymore. Fetch failures end up in the snapshot. On
// timeout the last snapshot is returned together with the context error.
func Probe(ctx context.Context, engine *trajview.Engine, opts ProbeOptions) (viewer.Snapshot, error) {
	if opts.Subject.IsZero() {
		return viewer.Snapshot{}, domain.ErrMissingSubject
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if opts.Request != nil {
		if err := engine.Memory().Remember(ctx, opts.Subject, *opts.Request); err != nil {
			return viewer.Snapshot{}, err
		}
	}
	if _, err := engine.Structures().Await(ctx, opts.Subject, ""); !fetchOutcome(err) {
		return viewer.Snapshot{}, fmt.Errorf("probe of %s: %w", opts.Subject, err)
	}
	if opts.Request != nil {
		if _, err := engine.Trajectories().Await(ctx, opts.Subject, *opts.Request); !fetchOutcome(err) {
			return viewer.Snapshot{}, fmt.Errorf("probe of %s: %w", opts.Subject, err)
		}
	}

	sess := engine.Session(ProbeSessionID)
	defer func() { _ = engine.CloseSession(ProbeSessionID) }()

	// The remembered request is restored by the subject switch.
	if err := sess.SetSubject(ctx, opts.Subject); err != nil {
		return viewer.Snapshot{}, err
	}

	last := sess.Snapshot()
	for snap := range sess.Watch(ctx) {
		last = snap
		if settled(snap) {
			return snap, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return last, fmt.Errorf("probe of %s did not settle: %w", opts.Subject, err)
	}
	return last, errors.New("probe session closed")
}

// fetchOutcome reports whether err is a completed fetch, successful or not.
func fetchOutcome(err error) bool {
	return err == nil || errors.Is(err, domain.ErrFetchFailure)
}

func settled(s viewer.Snapshot) bool {
	return !s.StructureLoading && s.Status.Status != domain.StatusLoading
}

// RenderReport describes a probe snapshot as Markdown.
func RenderReport(s viewer.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Subject)

	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Source | `%s` |\n", s.Source.Kind)
	fmt.Fprintf(&b, "| Status | `%s` |\n", s.Status.Status)
	if s.Request != nil {
		fmt.Fprintf(&b, "| Frames | %s |\n", orAll(s.Request.FrameRange))
		fmt.Fprintf(&b, "| Selection | %s |\n", orAll(s.Request.Selection))
	}
	b.WriteString("\n")

	if s.StructureError != "" {
		fmt.Fprintf(&b, "## Structure failed\n\n> %s\n\n", s.StructureError)
	}
	if s.Status.Status == domain.StatusError {
		fmt.Fprintf(&b, "## Trajectory failed\n\n> %s\n\n", s.Status.Message)
	}

	switch s.Source.Kind {
	case domain.SourceStructure:
		writeModel(&b, "Structure", s.Source.Structure)
	case domain.SourceTrajectory:
		writeModel(&b, "Model", s.Source.Model)
		c := s.Source.Coordinates
		fmt.Fprintf(&b, "## Coordinates\n\n- Label: `%s`\n- Format: `%s`\n- Size: %d bytes\n\n", c.Label, c.Format, c.Size)
	}

	fmt.Fprintf(&b, "## Pipeline\n\n```mermaid\n%s```\n", graph.GenerateMermaid(s))
	return b.String()
}

func writeModel(b *strings.Builder, title string, m *domain.ModelPart) {
	fmt.Fprintf(b, "## %s\n\n- Label: `%s`\n- Format: `%s`\n- Size: %d bytes\n\n", title, m.Label, m.Format, len(m.Data))
}

func orAll(s string) string {
	if s == "" {
		return "_all_"
	}
	return "`" + s + "`"
}
