// Package compose derives the single source the rendering surface consumes
// from the structure and trajectory loader outputs.
package compose

import (
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/loader"
)

// Compose returns the viewer source for subject.
//
//  1. No subject, no structure for subject, or a failed structure fetch: SourceNone.
//  2. A ready trajectory for the same subject: SourceTrajectory.
//  3. Otherwise: SourceStructure.
//
// A structure being revalidated keeps its previous value visible. A failed
// trajectory never hides an available structure. Payloads whose
// subject differs from subject are ignored. Compose has no side effects.
func Compose(
	subject domain.Subject,
	structure loader.Result[domain.StructurePayload],
	trajectory loader.Result[domain.TrajectoryPayload],
) domain.ViewerSource {
	if subject.IsZero() || !structure.HasValue || structure.Err != nil || structure.Value.Subject != subject {
		return domain.NoSource()
	}

	if trajectory.HasValue && trajectory.Err == nil && trajectory.Value.Subject == subject {
		src, err := domain.TrajectorySource(structure.Value, trajectory.Value)
		if err == nil {
			return src
		}
	}
	return domain.StructureSource(structure.Value)
}
