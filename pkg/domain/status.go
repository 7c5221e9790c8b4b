package domain

// Status is the three-state signal the rendering surface renders against.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusLoading, StatusError:
		return true
	}
	return false
}

// ViewerStatus is the reduced status exposed to the surface.
// Message is only meaningful when Status is StatusError.
type ViewerStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Idle returns the initial status.
func Idle() ViewerStatus {
	return ViewerStatus{Status: StatusIdle}
}

// StatusEvent is emitted by the rendering surface whenever it starts or finishes
// consuming a source.
type StatusEvent struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}
