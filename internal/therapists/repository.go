package therapists

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Repository defines therapist storage.
type Repository interface {
	ListActive(ctx context.Context) ([]Therapist, error)
	GetByID(ctx context.Context, id string) (*Therapist, error)
	SaveCalendarCredentials(ctx context.Context, id, refreshToken, calendarID string) error
}

// InMemoryRepository keeps therapists in insertion order.
type InMemoryRepository struct {
	mu         sync.RWMutex
	therapists []Therapist
}

// NewInMemoryRepository returns a repository seeded with the given therapists.
func NewInMemoryRepository(seed ...Therapist) *InMemoryRepository {
	r := &InMemoryRepository{}
	for _, t := range seed {
		r.Add(t)
	}
	return r
}

// Add appends a therapist, assigning an id when missing.
func (r *InMemoryRepository) Add(t Therapist) Therapist {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	r.mu.Lock()
	r.therapists = append(r.therapists, t)
	r.mu.Unlock()
	return t
}

// ListActive returns active therapists in store order.
func (r *InMemoryRepository) ListActive(ctx context.Context) ([]Therapist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Therapist, 0, len(r.therapists))
	for _, t := range r.therapists {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetByID returns the therapist with the id, active or not.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Therapist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.therapists {
		if t.ID == id {
			cp := t
			return &cp, nil
		}
	}
	return nil, ErrTherapistNotFound
}

// SaveCalendarCredentials stores the OAuth refresh token for calendar sync.
func (r *InMemoryRepository) SaveCalendarCredentials(ctx context.Context, id, refreshToken, calendarID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.therapists {
		if r.therapists[i].ID == id {
			r.therapists[i].GoogleRefreshToken = refreshToken
			r.therapists[i].GoogleCalendarID = calendarID
			return nil
		}
	}
	return ErrTherapistNotFound
}
