// Package testutils provides fakes shared by package tests.
package testutils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Services is a fake structure and trajectory service speaking the
// /subjects/{subject}/{structure|trajectory} protocol.
type Services struct {
	*httptest.Server

	mu           sync.Mutex
	structures   map[string][]byte
	trajectories map[string][]byte
	failures     map[string]int
	calls        map[string]int
}

// NewServices starts the fake service and closes it when the test ends.
func NewServices(t *testing.T) *Services {
	t.Helper()
	s := &Services{
		structures:   make(map[string][]byte),
		trajectories: make(map[string][]byte),
		failures:     make(map[string]int),
		calls:        make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// AddSubject registers a subject. A nil trajectory makes the trajectory 404.
func (s *Services) AddSubject(subject, structure string, trajectory []byte) *Services {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.structures[subject] = []byte(structure)
	if trajectory != nil {
		s.trajectories[subject] = trajectory
	}
	return s
}

// Fail makes every call of op ("structure" or "trajectory") for subject
// answer with code. Code 0 clears the failure.
func (s *Services) Fail(subject, op string, code int) *Services {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		delete(s.failures, subject+"/"+op)
	} else {
		s.failures[subject+"/"+op] = code
	}
	return s
}

// Calls returns how many times op was requested for subject.
func (s *Services) Calls(subject, op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[subject+"/"+op]
}

func (s *Services) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/subjects/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	subject, op := parts[0], parts[1]

	s.mu.Lock()
	s.calls[subject+"/"+op]++
	code := s.failures[subject+"/"+op]
	var body []byte
	var ok bool
	switch op {
	case "structure":
		body, ok = s.structures[subject]
	case "trajectory":
		body, ok = s.trajectories[subject]
	}
	s.mu.Unlock()

	switch {
	case code != 0:
		http.Error(w, http.StatusText(code), code)
	case !ok:
		http.NotFound(w, r)
	default:
		_, _ = w.Write(body)
	}
}
