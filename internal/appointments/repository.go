package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines appointment storage. Create and Reschedule must refuse
// overlapping active appointments for the same therapist atomically.
type Repository interface {
	Create(ctx context.Context, apt *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	ListOverlapping(ctx context.Context, therapistID string, start, end time.Time, excludeID string) ([]Appointment, error)
	ListByInquiry(ctx context.Context, inquiryID string) ([]Appointment, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	Reschedule(ctx context.Context, id string, start, end time.Time) error
	SetCalendarEvent(ctx context.Context, id, eventID string) error
}

// InMemoryRepository is a mutex-guarded store used in development and tests.
type InMemoryRepository struct {
	mu           sync.Mutex
	appointments map[string]*Appointment
	now          func() time.Time
}

// NewInMemoryRepository creates an empty store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appointments: make(map[string]*Appointment),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts the appointment unless it overlaps an active one.
func (r *InMemoryRepository) Create(ctx context.Context, apt *Appointment) error {
	if !apt.EndTime.After(apt.StartTime) {
		return ErrInvalidRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflictLocked(apt.TherapistID, apt.StartTime, apt.EndTime, "") {
		return ErrSlotConflict
	}
	if apt.ID == "" {
		apt.ID = uuid.New().String()
	}
	if apt.Status == "" {
		apt.Status = StatusScheduled
	}
	apt.CreatedAt = r.now()
	cp := *apt
	r.appointments[apt.ID] = &cp
	return nil
}

// GetByID returns a copy of the appointment.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *apt
	return &cp, nil
}

// ListOverlapping returns active appointments of the therapist intersecting [start, end).
func (r *InMemoryRepository) ListOverlapping(ctx context.Context, therapistID string, start, end time.Time, excludeID string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, apt := range r.appointments {
		if apt.ID == excludeID || apt.TherapistID != therapistID || !apt.Active() {
			continue
		}
		if apt.Overlaps(start, end) {
			out = append(out, *apt)
		}
	}
	sortByStart(out)
	return out, nil
}

// ListByInquiry returns all appointments for an inquiry, earliest first.
func (r *InMemoryRepository) ListByInquiry(ctx context.Context, inquiryID string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, apt := range r.appointments {
		if apt.InquiryID == inquiryID {
			out = append(out, *apt)
		}
	}
	sortByStart(out)
	return out, nil
}

// UpdateStatus changes the appointment status.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	apt.Status = status
	return nil
}

// Reschedule moves the appointment unless the new range is taken.
func (r *InMemoryRepository) Reschedule(ctx context.Context, id string, start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	if r.conflictLocked(apt.TherapistID, start, end, id) {
		return ErrSlotConflict
	}
	apt.StartTime = start
	apt.EndTime = end
	return nil
}

// SetCalendarEvent records the external calendar event id.
func (r *InMemoryRepository) SetCalendarEvent(ctx context.Context, id, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	apt.CalendarEventID = eventID
	return nil
}

func (r *InMemoryRepository) conflictLocked(therapistID string, start, end time.Time, excludeID string) bool {
	for _, apt := range r.appointments {
		if apt.ID == excludeID || apt.TherapistID != therapistID || !apt.Active() {
			continue
		}
		if apt.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func sortByStart(list []Appointment) {
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })
}
