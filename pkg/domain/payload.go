package domain

const (
	// DefaultStructureFormat is the atomic-coordinate format structures are decoded as.
	DefaultStructureFormat = "pdb"
	// DefaultTrajectoryFormat is the coordinate format requested from the trajectory service.
	DefaultTrajectoryFormat = "xtc"
)

// StructurePayload is a decoded structure definition. Immutable once produced.
type StructurePayload struct {
	Subject Subject `json:"subject"`
	Text    string  `json:"text"`
	Format  string  `json:"format"`
	Label   string  `json:"label"`
}

// StructureKey identifies a cached structure payload.
type StructureKey struct {
	Subject   Subject
	Selection string
}

// TrajectoryRequest is the trajectory segment a caller asked for.
// Absent fields are represented by the empty string; two requests are equal iff both fields are.
type TrajectoryRequest struct {
	FrameRange string `json:"frame_range,omitempty" yaml:"frame_range,omitempty"`
	Selection  string `json:"selection,omitempty" yaml:"selection,omitempty"`
}

// IsZero reports whether neither a frame range nor a selection was given.
// A zero request is still a valid request (the full trajectory).
func (r TrajectoryRequest) IsZero() bool {
	return r.FrameRange == "" && r.Selection == ""
}

// Key returns the cache key of this request for the given subject and coordinate format.
func (r TrajectoryRequest) Key(subject Subject, format string) TrajectoryKey {
	return TrajectoryKey{
		Subject:    subject,
		FrameRange: r.FrameRange,
		Selection:  r.Selection,
		Format:     format,
	}
}

// TrajectoryPayload is raw binary coordinate data for a trajectory segment.
type TrajectoryPayload struct {
	Subject Subject `json:"subject"`
	Data    []byte  `json:"-"`
	Format  string  `json:"format"`
	Label   string  `json:"label"`
}

// TrajectoryKey identifies a cached trajectory payload.
type TrajectoryKey struct {
	Subject    Subject
	FrameRange string
	Selection  string
	Format     string
}

// Request returns the request part of the key.
func (k TrajectoryKey) Request() TrajectoryRequest {
	return TrajectoryRequest{FrameRange: k.FrameRange, Selection: k.Selection}
}
