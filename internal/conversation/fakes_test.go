package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	_ "time/tzdata"

	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	"github.com/wolfman30/therapymatch-ai/internal/bookings"
	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
)

// scriptedLLM replays canned completions in order.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []LLMResponse
	errs      []error
	requests  []LLMRequest
}

func (s *scriptedLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return LLMResponse{}, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return LLMResponse{}, errors.New("scriptedLLM: no more responses")
}

// scriptedToolClient replays tool-calling rounds in order.
type scriptedToolClient struct {
	rounds   []ToolResponse
	err      error
	requests []ToolRequest
}

func (s *scriptedToolClient) CompleteWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return ToolResponse{}, s.err
	}
	i := len(s.requests) - 1
	if i < len(s.rounds) {
		return s.rounds[i], nil
	}
	return ToolResponse{Text: "Anything else I can help with?"}, nil
}

type stubSearcher struct {
	found  []therapists.Therapist
	params therapists.SearchParams
}

func (s *stubSearcher) Search(ctx context.Context, params therapists.SearchParams) ([]therapists.Therapist, error) {
	s.params = params
	return s.found, nil
}

type stubSlots struct {
	slots []appointments.Slot
	date  time.Time
}

func (s *stubSlots) AvailableSlots(ctx context.Context, therapistID string, date time.Time) ([]appointments.Slot, error) {
	s.date = date
	return s.slots, nil
}

type stubTherapists map[string]therapists.Therapist

func (s stubTherapists) GetByID(ctx context.Context, id string) (*therapists.Therapist, error) {
	t, ok := s[id]
	if !ok {
		return nil, therapists.ErrTherapistNotFound
	}
	return &t, nil
}

// stubEngine books against the inquiry store the way the real engine does:
// it reads the inquiry and moves it to scheduled.
type stubEngine struct {
	store   *inquiries.InMemoryRepository
	booked  []bookings.BookRequest
	apts    map[string]appointments.Appointment
	bookErr error
}

func newStubEngine(store *inquiries.InMemoryRepository) *stubEngine {
	return &stubEngine{store: store, apts: make(map[string]appointments.Appointment)}
}

func (e *stubEngine) Book(ctx context.Context, req bookings.BookRequest) (*bookings.Result, error) {
	e.booked = append(e.booked, req)
	if e.bookErr != nil {
		return nil, e.bookErr
	}
	inq, err := e.store.GetByID(ctx, req.InquiryID)
	if err != nil {
		return nil, bookings.ErrNotFound
	}
	loc := schedule.Location(req.TimeZone)
	start, err := schedule.ParseTimestamp(req.StartTime, loc)
	if err != nil {
		return nil, bookings.ErrInvalidTime
	}
	apt := appointments.Appointment{
		ID:          "apt-1",
		InquiryID:   inq.ID,
		TherapistID: req.TherapistID,
		StartTime:   start,
		EndTime:     start.Add(appointments.DefaultDuration),
		Status:      appointments.StatusConfirmed,
	}
	e.apts[apt.ID] = apt
	inq.Status = inquiries.StatusScheduled
	if err := e.store.Update(ctx, inq); err != nil {
		return nil, err
	}
	return &bookings.Result{Appointment: apt, CalendarSyncWarning: "calendar not connected"}, nil
}

func (e *stubEngine) Reschedule(ctx context.Context, req bookings.RescheduleRequest) (*bookings.Result, error) {
	apt, ok := e.apts[req.AppointmentID]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	start, err := schedule.ParseTimestamp(req.StartTime, schedule.Location(req.TimeZone))
	if err != nil {
		return nil, bookings.ErrInvalidTime
	}
	apt.StartTime = start
	apt.EndTime = start.Add(appointments.DefaultDuration)
	e.apts[apt.ID] = apt
	return &bookings.Result{Appointment: apt}, nil
}

func (e *stubEngine) Cancel(ctx context.Context, id string) (*bookings.Result, error) {
	apt, ok := e.apts[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	apt.Status = appointments.StatusCancelled
	e.apts[id] = apt
	return &bookings.Result{Appointment: apt}, nil
}

func (e *stubEngine) Get(ctx context.Context, id string) (*appointments.Appointment, error) {
	apt, ok := e.apts[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	return &apt, nil
}

func (e *stubEngine) ListForInquiry(ctx context.Context, inquiryID string) ([]appointments.Appointment, error) {
	var out []appointments.Appointment
	for _, apt := range e.apts {
		if apt.InquiryID == inquiryID {
			out = append(out, apt)
		}
	}
	return out, nil
}

// failingStore wraps the in-memory store and fails writes on demand.
type failingStore struct {
	*inquiries.InMemoryRepository
	failWrites bool
}

func (s *failingStore) Create(ctx context.Context, inq *inquiries.Inquiry) error {
	if s.failWrites {
		return errors.New("database unavailable")
	}
	return s.InMemoryRepository.Create(ctx, inq)
}

func (s *failingStore) Update(ctx context.Context, inq *inquiries.Inquiry) error {
	if s.failWrites {
		return errors.New("database unavailable")
	}
	return s.InMemoryRepository.Update(ctx, inq)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func kolkata() *time.Location {
	return schedule.Location("Asia/Kolkata")
}

func sampleOptions() []therapists.Summary {
	return []therapists.Summary{
		{ID: "t1", Name: "Dr. Anita Rao", Specialties: []string{"anxiety"}},
		{ID: "t2", Name: "Dr. Priya Sharma", Specialties: []string{"anxiety", "stress"}},
		{ID: "t3", Name: "Dr. Vikram Mehta", Specialties: []string{"depression"}},
	}
}
