package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	"github.com/wolfman30/therapymatch-ai/internal/calendar"
	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/notify"
	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

var bookingsTracer = otel.Tracer("therapymatch.internal.bookings")

// Warnings surfaced when calendar sync does not happen.
const (
	warnCalendarNotConfigured = "Calendar sync is not configured; the appointment is saved but no calendar invite was sent."
	warnNoCredentials         = "The therapist has not connected a calendar yet; the appointment is saved but no calendar invite was sent."
	warnCalendarFailed        = "The appointment is saved, but we could not add it to the therapist's calendar."
)

// InquiryStore is the inquiry storage the engine needs.
type InquiryStore interface {
	GetByID(ctx context.Context, id string) (*inquiries.Inquiry, error)
	Update(ctx context.Context, inq *inquiries.Inquiry) error
}

// TherapistStore is the therapist storage the engine needs.
type TherapistStore interface {
	GetByID(ctx context.Context, id string) (*therapists.Therapist, error)
}

// Notifier is told about committed booking changes.
type Notifier interface {
	Notify(ctx context.Context, notice notify.BookingNotice)
}

// BookRequest carries wire values; times are RFC3339 or local to TimeZone.
type BookRequest struct {
	InquiryID   string `json:"inquiryId"`
	TherapistID string `json:"therapistId"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime,omitempty"`
	TimeZone    string `json:"timeZone,omitempty"`
	Problem     string `json:"problem,omitempty"`
}

// RescheduleRequest moves an existing appointment.
type RescheduleRequest struct {
	AppointmentID string `json:"appointmentId"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime,omitempty"`
	TimeZone      string `json:"timeZone,omitempty"`
}

// Result is a committed booking change plus any non-fatal calendar warning.
type Result struct {
	Appointment         appointments.Appointment
	CalendarSyncWarning string
}

// Service is the booking engine.
type Service struct {
	appointments appointments.Repository
	inquiries    InquiryStore
	therapists   TherapistStore
	calendar     calendar.Syncer
	notifier     Notifier
	metrics      *metrics.BookingMetrics
	now          func() time.Time
	logger       *logging.Logger
}

// Option customizes the Service.
type Option func(*Service)

// WithCalendar enables best-effort calendar sync.
func WithCalendar(syncer calendar.Syncer) Option {
	return func(s *Service) { s.calendar = syncer }
}

// WithNotifier enables therapist notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics records booking outcomes.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the current time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the booking engine.
func NewService(apts appointments.Repository, inqs InquiryStore, ths TherapistStore, logger *logging.Logger, opts ...Option) *Service {
	if apts == nil || inqs == nil || ths == nil {
		panic("bookings: repositories required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		appointments: apts,
		inquiries:    inqs,
		therapists:   ths,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book validates and commits a new appointment. Validation fails fast in the
// order missing field, invalid time, past time, slot conflict. Calendar sync
// problems only produce a warning.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Result, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("therapymatch.inquiry_id", req.InquiryID),
		attribute.String("therapymatch.therapist_id", req.TherapistID),
	)

	res, err := s.book(ctx, req)
	s.metrics.ObserveOperation("book", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Result, error) {
	req.InquiryID = strings.TrimSpace(req.InquiryID)
	req.TherapistID = strings.TrimSpace(req.TherapistID)
	switch {
	case req.TherapistID == "":
		return nil, fmt.Errorf("%w: therapistId", ErrMissingField)
	case strings.TrimSpace(req.StartTime) == "":
		return nil, fmt.Errorf("%w: startTime", ErrMissingField)
	case req.InquiryID == "":
		return nil, fmt.Errorf("%w: inquiryId", ErrMissingField)
	}

	start, end, err := s.parseRange(req.StartTime, req.EndTime, req.TimeZone)
	if err != nil {
		return nil, err
	}

	therapist, err := s.therapists.GetByID(ctx, req.TherapistID)
	if err != nil {
		return nil, mapNotFound(err, therapists.ErrTherapistNotFound)
	}
	if !therapist.IsActive {
		return nil, fmt.Errorf("%w: therapist %s is not accepting bookings", ErrNotFound, therapist.ID)
	}
	inq, err := s.inquiries.GetByID(ctx, req.InquiryID)
	if err != nil {
		return nil, mapNotFound(err, inquiries.ErrInquiryNotFound)
	}

	if err := s.checkFree(ctx, therapist.ID, start, end, ""); err != nil {
		return nil, err
	}

	apt := &appointments.Appointment{
		InquiryID:   inq.ID,
		TherapistID: therapist.ID,
		StartTime:   start,
		EndTime:     end,
		Status:      appointments.StatusScheduled,
	}
	if err := s.appointments.Create(ctx, apt); err != nil {
		return nil, mapWriteError(err)
	}

	updated := inq.Clone()
	updated.MatchedTherapistID = therapist.ID
	updated.Status = inquiries.StatusScheduled
	updated.Merge(inquiries.Fields{Problem: req.Problem, RawMessage: req.Problem})
	if err := s.inquiries.Update(ctx, updated); err != nil {
		// Release the slot so a failed booking leaves nothing behind.
		if cerr := s.appointments.UpdateStatus(ctx, apt.ID, appointments.StatusCancelled); cerr != nil {
			s.logger.Error("bookings: compensate appointment failed", "appointment_id", apt.ID, "error", cerr)
		}
		return nil, fmt.Errorf("bookings: update inquiry: %w", err)
	}

	warning := s.syncCreate(ctx, *therapist, apt, updated, req.TimeZone)
	s.notify(ctx, "booked", *therapist, apt, updated.ExtractedSpecialty)

	s.logger.Info("appointment booked",
		"appointment_id", apt.ID,
		"inquiry_id", inq.ID,
		"therapist_id", therapist.ID,
		"start", apt.StartTime.Format(time.RFC3339),
		"calendar_synced", warning == "",
	)
	return &Result{Appointment: *apt, CalendarSyncWarning: warning}, nil
}

// Reschedule moves an appointment with the same validation as Book, ignoring
// the appointment's own current slot.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (*Result, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("therapymatch.appointment_id", req.AppointmentID))

	res, err := s.reschedule(ctx, req)
	s.metrics.ObserveOperation("reschedule", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

func (s *Service) reschedule(ctx context.Context, req RescheduleRequest) (*Result, error) {
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	switch {
	case req.AppointmentID == "":
		return nil, fmt.Errorf("%w: appointmentId", ErrMissingField)
	case strings.TrimSpace(req.StartTime) == "":
		return nil, fmt.Errorf("%w: startTime", ErrMissingField)
	}
	start, end, err := s.parseRange(req.StartTime, req.EndTime, req.TimeZone)
	if err != nil {
		return nil, err
	}

	apt, err := s.appointments.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, mapNotFound(err, appointments.ErrAppointmentNotFound)
	}
	if !apt.Active() {
		return nil, ErrCancelled
	}
	if err := s.checkFree(ctx, apt.TherapistID, start, end, apt.ID); err != nil {
		return nil, err
	}
	if err := s.appointments.Reschedule(ctx, apt.ID, start, end); err != nil {
		return nil, mapWriteError(err)
	}
	apt.StartTime, apt.EndTime = start, end

	warning := ""
	if therapist, err := s.therapists.GetByID(ctx, apt.TherapistID); err == nil {
		warning = s.syncUpdate(ctx, *therapist, apt, req.TimeZone)
		s.notify(ctx, "rescheduled", *therapist, apt, "")
	} else {
		s.logger.Warn("bookings: therapist lookup after reschedule failed", "appointment_id", apt.ID, "error", err)
		warning = warnCalendarFailed
	}

	s.logger.Info("appointment rescheduled", "appointment_id", apt.ID, "start", start.Format(time.RFC3339))
	return &Result{Appointment: *apt, CalendarSyncWarning: warning}, nil
}

// Cancel marks the appointment cancelled, freeing its slot. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, appointmentID string) (*Result, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("therapymatch.appointment_id", appointmentID))

	res, err := s.cancel(ctx, strings.TrimSpace(appointmentID))
	s.metrics.ObserveOperation("cancel", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

func (s *Service) cancel(ctx context.Context, appointmentID string) (*Result, error) {
	if appointmentID == "" {
		return nil, fmt.Errorf("%w: appointmentId", ErrMissingField)
	}
	apt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, mapNotFound(err, appointments.ErrAppointmentNotFound)
	}
	if !apt.Active() {
		return &Result{Appointment: *apt}, nil
	}
	if err := s.appointments.UpdateStatus(ctx, apt.ID, appointments.StatusCancelled); err != nil {
		return nil, mapNotFound(err, appointments.ErrAppointmentNotFound)
	}
	apt.Status = appointments.StatusCancelled

	if err := s.cancelInquiryIfIdle(ctx, apt.InquiryID); err != nil {
		s.logger.Warn("bookings: inquiry status after cancel", "inquiry_id", apt.InquiryID, "error", err)
	}

	warning := ""
	if therapist, err := s.therapists.GetByID(ctx, apt.TherapistID); err == nil {
		warning = s.syncDelete(ctx, *therapist, apt)
		s.notify(ctx, "cancelled", *therapist, apt, "")
	}

	s.logger.Info("appointment cancelled", "appointment_id", apt.ID, "inquiry_id", apt.InquiryID)
	return &Result{Appointment: *apt, CalendarSyncWarning: warning}, nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, appointmentID string) (*appointments.Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, strings.TrimSpace(appointmentID))
	if err != nil {
		return nil, mapNotFound(err, appointments.ErrAppointmentNotFound)
	}
	return apt, nil
}

// ListForInquiry returns every appointment of an inquiry, earliest first.
func (s *Service) ListForInquiry(ctx context.Context, inquiryID string) ([]appointments.Appointment, error) {
	inquiryID = strings.TrimSpace(inquiryID)
	if inquiryID == "" {
		return nil, fmt.Errorf("%w: inquiryId", ErrMissingField)
	}
	list, err := s.appointments.ListByInquiry(ctx, inquiryID)
	if err != nil {
		return nil, fmt.Errorf("bookings: list appointments: %w", err)
	}
	return list, nil
}

func (s *Service) parseRange(rawStart, rawEnd, tz string) (time.Time, time.Time, error) {
	loc := schedule.Location(tz)
	start, err := schedule.ParseTimestamp(rawStart, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	end := start.Add(appointments.DefaultDuration)
	if strings.TrimSpace(rawEnd) != "" {
		end, err = schedule.ParseTimestamp(rawEnd, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end must be after start", ErrInvalidTime)
		}
	}
	if start.Before(s.now()) {
		return time.Time{}, time.Time{}, ErrPastTime
	}
	return start, end, nil
}

func (s *Service) checkFree(ctx context.Context, therapistID string, start, end time.Time, excludeID string) error {
	existing, err := s.appointments.ListOverlapping(ctx, therapistID, start, end, excludeID)
	if err != nil {
		return fmt.Errorf("bookings: overlap check: %w", err)
	}
	if len(existing) > 0 {
		return ErrSlotConflict
	}
	return nil
}

func (s *Service) cancelInquiryIfIdle(ctx context.Context, inquiryID string) error {
	list, err := s.appointments.ListByInquiry(ctx, inquiryID)
	if err != nil {
		return err
	}
	for _, apt := range list {
		if apt.Active() {
			return nil
		}
	}
	return s.inquiries.Update(ctx, &inquiries.Inquiry{ID: inquiryID, Status: inquiries.StatusCancelled})
}

func (s *Service) syncCreate(ctx context.Context, therapist therapists.Therapist, apt *appointments.Appointment, inq *inquiries.Inquiry, tz string) string {
	if warning := s.calendarPrecheck(therapist); warning != "" {
		return warning
	}
	eventID, err := s.calendar.CreateEvent(ctx, therapist, calendar.Event{
		InquiryID: apt.InquiryID,
		Concern:   inq.ExtractedSpecialty,
		Start:     apt.StartTime,
		End:       apt.EndTime,
		TimeZone:  schedule.Location(tz).String(),
	})
	if err != nil {
		s.metrics.ObserveCalendarSync("failed")
		s.logger.Warn("calendar sync failed", "appointment_id", apt.ID, "therapist_id", therapist.ID, "error", err)
		return warnCalendarFailed
	}
	s.metrics.ObserveCalendarSync("synced")
	apt.CalendarEventID = eventID
	if err := s.appointments.SetCalendarEvent(ctx, apt.ID, eventID); err != nil {
		s.logger.Warn("bookings: record calendar event id", "appointment_id", apt.ID, "error", err)
	}
	return ""
}

func (s *Service) syncUpdate(ctx context.Context, therapist therapists.Therapist, apt *appointments.Appointment, tz string) string {
	if warning := s.calendarPrecheck(therapist); warning != "" {
		return warning
	}
	ev := calendar.Event{InquiryID: apt.InquiryID, Start: apt.StartTime, End: apt.EndTime, TimeZone: schedule.Location(tz).String()}
	if apt.CalendarEventID == "" {
		id, err := s.calendar.CreateEvent(ctx, therapist, ev)
		if err != nil {
			s.metrics.ObserveCalendarSync("failed")
			return warnCalendarFailed
		}
		apt.CalendarEventID = id
		_ = s.appointments.SetCalendarEvent(ctx, apt.ID, id)
		s.metrics.ObserveCalendarSync("synced")
		return ""
	}
	if err := s.calendar.UpdateEvent(ctx, therapist, apt.CalendarEventID, ev); err != nil {
		s.metrics.ObserveCalendarSync("failed")
		s.logger.Warn("calendar update failed", "appointment_id", apt.ID, "error", err)
		return warnCalendarFailed
	}
	s.metrics.ObserveCalendarSync("synced")
	return ""
}

func (s *Service) syncDelete(ctx context.Context, therapist therapists.Therapist, apt *appointments.Appointment) string {
	if apt.CalendarEventID == "" {
		return ""
	}
	if warning := s.calendarPrecheck(therapist); warning != "" {
		return warning
	}
	if err := s.calendar.DeleteEvent(ctx, therapist, apt.CalendarEventID); err != nil {
		s.metrics.ObserveCalendarSync("failed")
		s.logger.Warn("calendar delete failed", "appointment_id", apt.ID, "error", err)
		return warnCalendarFailed
	}
	s.metrics.ObserveCalendarSync("synced")
	return ""
}

func (s *Service) calendarPrecheck(therapist therapists.Therapist) string {
	if s.calendar == nil {
		s.metrics.ObserveCalendarSync("skipped")
		return warnCalendarNotConfigured
	}
	if !therapist.HasCalendar() {
		s.metrics.ObserveCalendarSync("skipped")
		return warnNoCredentials
	}
	return ""
}

func (s *Service) notify(ctx context.Context, kind string, therapist therapists.Therapist, apt *appointments.Appointment, concern string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notify.BookingNotice{
		Kind:          kind,
		TherapistName: therapist.Name,
		TherapistMail: therapist.Email,
		InquiryID:     apt.InquiryID,
		Concern:       concern,
		Start:         apt.StartTime,
		End:           apt.EndTime,
	})
}

func mapNotFound(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func mapWriteError(err error) error {
	switch {
	case errors.Is(err, appointments.ErrSlotConflict):
		return ErrSlotConflict
	case errors.Is(err, appointments.ErrAppointmentNotFound), errors.Is(err, appointments.ErrUnknownReference):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, appointments.ErrInvalidRange):
		return fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	return fmt.Errorf("bookings: write appointment: %w", err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
