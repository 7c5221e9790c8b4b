package status

import "github.com/aretw0/trajview/pkg/domain"

// FallbackMessage is used when a failure carries no message of its own.
const FallbackMessage = "failed to load trajectory"

// Event is an input of the reducer: FetchObserved or SurfaceReported.
type Event interface {
	event()
}

// FetchObserved is the state of the trajectory loader for the currently
// remembered request of the active subject.
type FetchObserved struct {
	Subject    domain.Subject
	Remembered bool // a trajectory request is remembered for the active subject
	Loading    bool
	Ready      bool
	Err        error
	Generation uint64
}

// SurfaceReported is a status pushed by the rendering surface.
type SurfaceReported domain.StatusEvent

func (FetchObserved) event()   {}
func (SurfaceReported) event() {}

// State is the reducer state. The zero value is idle with no surface wired.
type State struct {
	View       domain.ViewerStatus
	Generation uint64

	// SurfaceWired means readiness is only assumed once the surface reports it.
	SurfaceWired bool

	fetch        FetchObserved
	surface      *domain.ViewerStatus
	surfaceReady bool
}

// NewState returns the initial idle state.
func NewState(surfaceWired bool) State {
	return State{View: domain.Idle(), SurfaceWired: surfaceWired}
}

// Reduce applies ev to s and returns the next state.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case FetchObserved:
		if ev.Subject != s.fetch.Subject || (s.fetch.Remembered && !ev.Remembered) {
			// Another subject, or the request went away: start over.
			s = NewState(s.SurfaceWired)
		}
		if ev.Remembered && ev.Generation != s.Generation {
			// A new generation supersedes whatever the surface said about the previous one.
			s.Generation = ev.Generation
			s.surface = nil
			s.surfaceReady = false
		}
		s.fetch = ev

	case SurfaceReported:
		switch ev.Status {
		case domain.StatusLoading:
			s.surface = &domain.ViewerStatus{Status: domain.StatusLoading}
		case domain.StatusError:
			msg := ev.Message
			if msg == "" {
				msg = FallbackMessage
			}
			s.surface = &domain.ViewerStatus{Status: domain.StatusError, Message: msg}
		case domain.StatusIdle:
			s.surface = nil
			if s.fetch.Ready {
				s.surfaceReady = true
			}
		default:
			return s
		}
	}

	s.View = derive(s)
	return s
}

func derive(s State) domain.ViewerStatus {
	if s.surface != nil {
		return *s.surface
	}
	f := s.fetch
	switch {
	case !f.Remembered:
		return domain.Idle()
	case f.Loading:
		return domain.ViewerStatus{Status: domain.StatusLoading}
	case f.Err != nil:
		msg := f.Err.Error()
		if msg == "" {
			msg = FallbackMessage
		}
		return domain.ViewerStatus{Status: domain.StatusError, Message: msg}
	case f.Ready && s.SurfaceWired && !s.surfaceReady:
		return domain.ViewerStatus{Status: domain.StatusLoading}
	}
	return domain.Idle()
}
