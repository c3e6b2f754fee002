package therapists

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// Searcher finds therapists.
type Searcher interface {
	Search(ctx context.Context, params SearchParams) ([]Therapist, error)
}

// SlotFinder lists free slots for a therapist on a day.
type SlotFinder interface {
	AvailableSlots(ctx context.Context, therapistID string, date time.Time) ([]appointments.Slot, error)
}

// Match wraps a therapist in the search response.
type Match struct {
	Therapist Summary `json:"therapist"`
}

// SearchResponse is the body of POST /therapists/search.
type SearchResponse struct {
	Matches []Match `json:"matches"`
}

// SlotView is a slot rendered in the caller's time zone.
type SlotView struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Display   string `json:"display"`
}

// AvailabilityResponse is the body of GET /therapists/{therapistID}/availability.
type AvailabilityResponse struct {
	TherapistID string     `json:"therapistId"`
	Date        string     `json:"date"`
	TimeZone    string     `json:"timeZone"`
	Slots       []SlotView `json:"slots"`
}

// Handler serves therapist search and availability.
type Handler struct {
	search Searcher
	slots  SlotFinder
	store  Repository
	logger *logging.Logger
	now    func() time.Time
}

// NewHandler creates a therapists handler.
func NewHandler(search Searcher, slots SlotFinder, store Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{search: search, slots: slots, store: store, logger: logger, now: time.Now}
}

// Search handles POST /therapists/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	found, err := h.search.Search(r.Context(), params)
	if err != nil {
		h.logger.Error("therapist search failed", "error", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	resp := SearchResponse{Matches: make([]Match, 0, len(found))}
	for _, t := range found {
		resp.Matches = append(resp.Matches, Match{Therapist: t.Summary()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Availability handles GET /therapists/{therapistID}/availability?date=YYYY-MM-DD&timeZone=.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	therapistID := chi.URLParam(r, "therapistID")
	loc := schedule.Location(r.URL.Query().Get("timeZone"))

	date := h.now().In(loc)
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	if h.store != nil {
		if _, err := h.store.GetByID(r.Context(), therapistID); err != nil {
			if errors.Is(err, ErrTherapistNotFound) {
				http.Error(w, "therapist not found", http.StatusNotFound)
				return
			}
			h.logger.Error("therapist lookup failed", "therapist_id", therapistID, "error", err)
			http.Error(w, "availability failed", http.StatusInternalServerError)
			return
		}
	}

	slots, err := h.slots.AvailableSlots(r.Context(), therapistID, date)
	if err != nil {
		h.logger.Error("availability failed", "therapist_id", therapistID, "error", err)
		http.Error(w, "availability failed", http.StatusInternalServerError)
		return
	}
	resp := AvailabilityResponse{
		TherapistID: therapistID,
		Date:        date.Format("2006-01-02"),
		TimeZone:    loc.String(),
		Slots:       make([]SlotView, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, SlotView{
			StartTime: schedule.Format(s.Start),
			EndTime:   schedule.Format(s.End),
			Display:   s.Display,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
