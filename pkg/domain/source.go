package domain

import "bytes"

// SourceKind discriminates the active variant of a ViewerSource.
type SourceKind string

const (
	SourceNone       SourceKind = "none"       // No subject or no structure available yet
	SourceStructure  SourceKind = "structure"  // Structure only
	SourceTrajectory SourceKind = "trajectory" // Structure as model plus trajectory coordinates
)

// ModelPart is a textual structure handed to the surface.
type ModelPart struct {
	Data   string `json:"data"`
	Format string `json:"format"`
	Label  string `json:"label"`
}

// CoordinatesPart is binary coordinate data handed to the surface.
// The bytes are not serialized to JSON; Size reports their length.
type CoordinatesPart struct {
	Data   []byte `json:"-"`
	Size   int    `json:"size"`
	Format string `json:"format"`
	Label  string `json:"label"`
}

// ViewerSource is the single composed input of the rendering surface.
// Exactly one variant is active, selected by Kind:
//   - SourceNone: all parts are nil.
//   - SourceStructure: Structure is set.
//   - SourceTrajectory: Model and Coordinates are set.
type ViewerSource struct {
	Kind        SourceKind       `json:"kind"`
	Structure   *ModelPart       `json:"structure,omitempty"`
	Model       *ModelPart       `json:"model,omitempty"`
	Coordinates *CoordinatesPart `json:"coordinates,omitempty"`
}

// NoSource returns the empty source.
func NoSource() ViewerSource {
	return ViewerSource{Kind: SourceNone}
}

// StructureSource builds a structure-only source.
func StructureSource(s StructurePayload) ViewerSource {
	return ViewerSource{
		Kind: SourceStructure,
		Structure: &ModelPart{
			Data:   s.Text,
			Format: s.Format,
			Label:  Label(s.Subject, s.Format),
		},
	}
}

// TrajectorySource combines a structure (as model) and a trajectory (as coordinates).
// Both payloads must belong to the same subject.
func TrajectorySource(s StructurePayload, t TrajectoryPayload) (ViewerSource, error) {
	if s.Subject != t.Subject {
		return NoSource(), ErrSubjectMismatch
	}
	return ViewerSource{
		Kind: SourceTrajectory,
		Model: &ModelPart{
			Data:   s.Text,
			Format: s.Format,
			Label:  Label(s.Subject, s.Format),
		},
		Coordinates: &CoordinatesPart{
			Data:   t.Data,
			Size:   len(t.Data),
			Format: t.Format,
			Label:  Label(t.Subject, t.Format),
		},
	}, nil
}

// Equal reports whether two sources carry the same variant and content.
func (v ViewerSource) Equal(o ViewerSource) bool {
	if v.Kind != o.Kind {
		return false
	}
	return modelEqual(v.Structure, o.Structure) &&
		modelEqual(v.Model, o.Model) &&
		coordinatesEqual(v.Coordinates, o.Coordinates)
}

func modelEqual(a, b *ModelPart) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func coordinatesEqual(a, b *CoordinatesPart) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Format == b.Format && a.Label == b.Label && a.Size == b.Size && bytes.Equal(a.Data, b.Data)
}
