package viewer

import "github.com/aretw0/trajview/pkg/domain"

// Snapshot is everything a rendering surface needs at one point in time.
type Snapshot struct {
	SessionID        string                    `json:"session_id"`
	Subject          domain.Subject            `json:"subject,omitempty"`
	Request          *domain.TrajectoryRequest `json:"request,omitempty"`
	Source           domain.ViewerSource       `json:"source"`
	Status           domain.ViewerStatus       `json:"status"`
	StructureLoading bool                      `json:"structure_loading"`
	StructureError   string                    `json:"structure_error,omitempty"`
}

// Equal reports whether two snapshots describe the same view.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.SessionID != o.SessionID ||
		s.Subject != o.Subject ||
		s.Status != o.Status ||
		s.StructureLoading != o.StructureLoading ||
		s.StructureError != o.StructureError {
		return false
	}
	if (s.Request == nil) != (o.Request == nil) {
		return false
	}
	if s.Request != nil && *s.Request != *o.Request {
		return false
	}
	return s.Source.Equal(o.Source)
}
