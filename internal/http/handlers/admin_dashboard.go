package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	httpmiddleware "github.com/wolfman30/therapymatch-ai/internal/http/middleware"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

const (
	defaultAdminLimit = 100
	maxAdminLimit     = 500
)

// AdminDashboardHandler serves the read-only admin reporting endpoints.
type AdminDashboardHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewAdminDashboardHandler creates a new admin dashboard handler.
func NewAdminDashboardHandler(db *sql.DB, logger *logging.Logger) *AdminDashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminDashboardHandler{db: db, logger: logger}
}

// AdminInquiry is one inquiry row in the admin listing.
type AdminInquiry struct {
	ID                 string  `json:"id"`
	PatientIdentifier  string  `json:"patient_identifier"`
	ProblemDescription string  `json:"problem_description"`
	ExtractedSpecialty string  `json:"extracted_specialty"`
	RequestedSchedule  string  `json:"requested_schedule"`
	InsuranceInfo      string  `json:"insurance_info"`
	MatchedTherapistID *string `json:"matched_therapist_id"`
	TherapistName      *string `json:"therapist_name"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
}

// AdminAppointment is one appointment row joined with its therapist.
type AdminAppointment struct {
	ID              string  `json:"id"`
	InquiryID       string  `json:"inquiry_id"`
	TherapistID     string  `json:"therapist_id"`
	TherapistName   string  `json:"therapist_name"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	Status          string  `json:"status"`
	CalendarEventID *string `json:"calendar_event_id"`
	CreatedAt       string  `json:"created_at"`
}

// AdminDataResponse is the body of GET /admin/data.
type AdminDataResponse struct {
	Inquiries    []AdminInquiry     `json:"inquiries"`
	Appointments []AdminAppointment `json:"appointments"`
	TimeZone     string             `json:"time_zone"`
}

// AdminTherapist is a therapist row without calendar credentials.
type AdminTherapist struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Specialties       []string `json:"specialties"`
	AcceptedInsurance []string `json:"accepted_insurance"`
	IsActive          bool     `json:"is_active"`
	CalendarConnected bool     `json:"calendar_connected"`
}

// ListTherapistsResponse is the body of GET /admin/therapists.
type ListTherapistsResponse struct {
	Therapists []AdminTherapist `json:"therapists"`
	Total      int              `json:"total"`
}

// GetAdminData lists inquiries and appointments, newest first.
// GET /admin/data?limit=&timeZone=
func (h *AdminDashboardHandler) GetAdminData(w http.ResponseWriter, r *http.Request) {
	limit := defaultAdminLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxAdminLimit)
	}
	loc := schedule.Location(r.URL.Query().Get("timeZone"))
	ctx := r.Context()
	h.logger.Info("admin data requested", "admin", httpmiddleware.AdminSubject(ctx), "limit", limit)

	rows, err := h.db.QueryContext(ctx, `
		SELECT i.id::text, i.patient_identifier, i.problem_description, i.extracted_specialty,
			i.requested_schedule, i.insurance_info, i.matched_therapist_id::text, t.name, i.status, i.created_at
		FROM inquiries i
		LEFT JOIN therapists t ON t.id = i.matched_therapist_id
		ORDER BY i.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		h.logger.Error("failed to query inquiries", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	inquiries := []AdminInquiry{}
	for rows.Next() {
		var (
			inq           AdminInquiry
			matchedID     sql.NullString
			therapistName sql.NullString
			createdAt     time.Time
		)
		if err := rows.Scan(&inq.ID, &inq.PatientIdentifier, &inq.ProblemDescription, &inq.ExtractedSpecialty,
			&inq.RequestedSchedule, &inq.InsuranceInfo, &matchedID, &therapistName, &inq.Status, &createdAt); err != nil {
			h.logger.Error("failed to scan inquiry row", "error", err)
			continue
		}
		if matchedID.Valid {
			inq.MatchedTherapistID = &matchedID.String
		}
		if therapistName.Valid {
			inq.TherapistName = &therapistName.String
		}
		inq.CreatedAt = createdAt.In(loc).Format(time.RFC3339)
		inquiries = append(inquiries, inq)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		h.logger.Error("error iterating inquiry rows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	_ = rows.Close()

	aptRows, err := h.db.QueryContext(ctx, `
		SELECT a.id::text, a.inquiry_id::text, a.therapist_id::text, t.name, a.start_time, a.end_time,
			a.status, a.calendar_event_id, a.created_at
		FROM appointments a
		JOIN therapists t ON t.id = a.therapist_id
		ORDER BY a.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		h.logger.Error("failed to query appointments", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer aptRows.Close()

	appointments := []AdminAppointment{}
	for aptRows.Next() {
		var (
			apt                   AdminAppointment
			eventID               sql.NullString
			start, end, createdAt time.Time
		)
		if err := aptRows.Scan(&apt.ID, &apt.InquiryID, &apt.TherapistID, &apt.TherapistName, &start, &end,
			&apt.Status, &eventID, &createdAt); err != nil {
			h.logger.Error("failed to scan appointment row", "error", err)
			continue
		}
		if eventID.Valid {
			apt.CalendarEventID = &eventID.String
		}
		apt.StartTime = schedule.Format(start.In(loc))
		apt.EndTime = schedule.Format(end.In(loc))
		apt.CreatedAt = createdAt.In(loc).Format(time.RFC3339)
		appointments = append(appointments, apt)
	}
	if err := aptRows.Err(); err != nil {
		h.logger.Error("error iterating appointment rows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, AdminDataResponse{Inquiries: inquiries, Appointments: appointments, TimeZone: loc.String()})
}

// ListTherapists returns every therapist, active or not.
// GET /admin/therapists
func (h *AdminDashboardHandler) ListTherapists(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id::text, name, email, specialties, accepted_insurance, is_active,
			COALESCE(google_refresh_token, '') <> ''
		FROM therapists
		ORDER BY name ASC`)
	if err != nil {
		h.logger.Error("failed to query therapists", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	therapists := []AdminTherapist{}
	for rows.Next() {
		var t AdminTherapist
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, pq.Array(&t.Specialties), pq.Array(&t.AcceptedInsurance),
			&t.IsActive, &t.CalendarConnected); err != nil {
			h.logger.Error("failed to scan therapist row", "error", err)
			continue
		}
		therapists = append(therapists, t)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("error iterating therapist rows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, ListTherapistsResponse{Therapists: therapists, Total: len(therapists)})
}

func (h *AdminDashboardHandler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode admin response", "error", err)
	}
}

// RegisterAdminRoutes registers the admin reporting routes. gatherer may be
// nil, in which case the latency report is not mounted.
func RegisterAdminRoutes(r chi.Router, db *sql.DB, gatherer prometheus.Gatherer, logger *logging.Logger) {
	h := NewAdminDashboardHandler(db, logger)
	r.Get("/data", h.GetAdminData)
	r.Get("/therapists", h.ListTherapists)
	if gatherer != nil {
		r.Get("/llm-latency", LLMLatencyHandler(gatherer))
	}
}
