package ports

import (
	"context"

	"github.com/aretw0/trajview/pkg/domain"
)

// RequestStore persists the most recent trajectory request per subject.
// This is what lets a viewer restore its prior segment when the caller navigates
// away from a subject and back.
type RequestStore interface {
	// Save records the request for a subject, replacing any previous one.
	Save(ctx context.Context, subject domain.Subject, req domain.TrajectoryRequest) error

	// Load retrieves the request for a subject.
	// Returns domain.ErrRequestNotFound if nothing is remembered.
	Load(ctx context.Context, subject domain.Subject) (domain.TrajectoryRequest, error)

	// Delete forgets the request for a subject.
	Delete(ctx context.Context, subject domain.Subject) error

	// List returns the subjects that have a remembered request.
	List(ctx context.Context) ([]domain.Subject, error)
}
