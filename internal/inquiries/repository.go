package inquiries

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for inquiry storage.
type Repository interface {
	Create(ctx context.Context, inq *Inquiry) error
	Update(ctx context.Context, inq *Inquiry) error
	GetByID(ctx context.Context, id string) (*Inquiry, error)
	GetLatestByPatient(ctx context.Context, patientIdentifier string) (*Inquiry, error)
}

// InMemoryRepository keeps inquiries in process memory.
type InMemoryRepository struct {
	mu        sync.RWMutex
	inquiries map[string]*Inquiry
	order     []string
	now       func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		inquiries: make(map[string]*Inquiry),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new inquiry, assigning its id and timestamps.
func (r *InMemoryRepository) Create(ctx context.Context, inq *Inquiry) error {
	if inq == nil || strings.TrimSpace(inq.PatientIdentifier) == "" {
		return ErrMissingPatient
	}
	if inq.ID == "" {
		inq.ID = uuid.New().String()
	}
	if inq.Status == "" {
		inq.Status = StatusPending
	}
	now := r.now()
	inq.CreatedAt = now
	inq.UpdatedAt = now

	r.mu.Lock()
	r.inquiries[inq.ID] = inq.Clone()
	r.order = append(r.order, inq.ID)
	r.mu.Unlock()
	return nil
}

// Update writes the inquiry, keeping stored values for any blank field.
func (r *InMemoryRepository) Update(ctx context.Context, inq *Inquiry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.inquiries[inq.ID]
	if !ok {
		return ErrInquiryNotFound
	}
	merged := mergeStored(stored, inq)
	merged.UpdatedAt = r.now()
	r.inquiries[inq.ID] = merged
	*inq = *merged.Clone()
	return nil
}

// GetByID retrieves an inquiry by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Inquiry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inq, ok := r.inquiries[id]
	if !ok {
		return nil, ErrInquiryNotFound
	}
	return inq.Clone(), nil
}

// GetLatestByPatient returns the most recently created inquiry for the patient.
func (r *InMemoryRepository) GetLatestByPatient(ctx context.Context, patientIdentifier string) (*Inquiry, error) {
	patientIdentifier = strings.TrimSpace(patientIdentifier)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		if inq := r.inquiries[r.order[i]]; inq.PatientIdentifier == patientIdentifier {
			return inq.Clone(), nil
		}
	}
	return nil, ErrInquiryNotFound
}
