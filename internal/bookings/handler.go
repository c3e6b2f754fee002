package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// Engine is the booking surface exposed over HTTP and to the conversation tools.
type Engine interface {
	Book(ctx context.Context, req BookRequest) (*Result, error)
	Reschedule(ctx context.Context, req RescheduleRequest) (*Result, error)
	Cancel(ctx context.Context, appointmentID string) (*Result, error)
	Get(ctx context.Context, appointmentID string) (*appointments.Appointment, error)
	ListForInquiry(ctx context.Context, inquiryID string) ([]appointments.Appointment, error)
}

// AppointmentView renders an appointment with zone-less local times plus the zone.
type AppointmentView struct {
	ID              string `json:"id"`
	InquiryID       string `json:"inquiryId"`
	TherapistID     string `json:"therapistId"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	TimeZone        string `json:"timeZone"`
	Status          string `json:"status"`
	CalendarEventID string `json:"calendarEventId,omitempty"`
}

// NewAppointmentView converts apt into tz for display.
func NewAppointmentView(apt appointments.Appointment, tz string) AppointmentView {
	loc := schedule.Location(tz)
	return AppointmentView{
		ID:              apt.ID,
		InquiryID:       apt.InquiryID,
		TherapistID:     apt.TherapistID,
		StartTime:       schedule.Format(apt.StartTime.In(loc)),
		EndTime:         schedule.Format(apt.EndTime.In(loc)),
		TimeZone:        loc.String(),
		Status:          string(apt.Status),
		CalendarEventID: apt.CalendarEventID,
	}
}

// Response is the booking endpoint body.
type Response struct {
	Success             bool              `json:"success"`
	Message             string            `json:"message,omitempty"`
	Appointment         *AppointmentView  `json:"appointment,omitempty"`
	Appointments        []AppointmentView `json:"appointments,omitempty"`
	CalendarSyncWarning string            `json:"calendarSyncWarning,omitempty"`
}

// Handler serves the appointment endpoints.
type Handler struct {
	engine Engine
	logger *logging.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(engine Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Book handles POST /appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return
	}
	res, err := h.engine.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "book")
		return
	}
	view := NewAppointmentView(res.Appointment, req.TimeZone)
	writeJSON(w, http.StatusCreated, Response{
		Success:             true,
		Message:             "Your session is booked.",
		Appointment:         &view,
		CalendarSyncWarning: res.CalendarSyncWarning,
	})
}

// Get handles GET /appointments/{appointmentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	apt, err := h.engine.Get(r.Context(), chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeError(w, err, "get")
		return
	}
	view := NewAppointmentView(*apt, r.URL.Query().Get("timeZone"))
	writeJSON(w, http.StatusOK, Response{Success: true, Appointment: &view})
}

// ListForInquiry handles GET /inquiries/{inquiryID}/appointments.
func (h *Handler) ListForInquiry(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListForInquiry(r.Context(), chi.URLParam(r, "inquiryID"))
	if err != nil {
		h.writeError(w, err, "list")
		return
	}
	tz := r.URL.Query().Get("timeZone")
	views := make([]AppointmentView, 0, len(list))
	for _, apt := range list {
		views = append(views, NewAppointmentView(apt, tz))
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Appointments: views})
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Cancel(r.Context(), chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeError(w, err, "cancel")
		return
	}
	view := NewAppointmentView(res.Appointment, r.URL.Query().Get("timeZone"))
	writeJSON(w, http.StatusOK, Response{
		Success:             true,
		Message:             "Your session has been cancelled.",
		Appointment:         &view,
		CalendarSyncWarning: res.CalendarSyncWarning,
	})
}

// Reschedule handles POST /appointments/{appointmentID}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return
	}
	req.AppointmentID = chi.URLParam(r, "appointmentID")
	res, err := h.engine.Reschedule(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "reschedule")
		return
	}
	view := NewAppointmentView(res.Appointment, req.TimeZone)
	writeJSON(w, http.StatusOK, Response{
		Success:             true,
		Message:             "Your session has been moved.",
		Appointment:         &view,
		CalendarSyncWarning: res.CalendarSyncWarning,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("booking request failed", "operation", op, "error", err)
	}
	writeJSON(w, status, Response{Message: UserMessage(err)})
}

// StatusFor maps booking errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrSlotConflict), errors.Is(err, ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
