package therapists

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
)

func newTestRouter(t *testing.T) (http.Handler, *appointments.InMemoryRepository) {
	t.Helper()
	repo := seedRepo()
	apts := appointments.NewInMemoryRepository()
	checker := appointments.NewAvailabilityChecker(apts, func() time.Time {
		return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	})
	h := NewHandler(NewMatcher(repo), checker, repo, nil)

	r := chi.NewRouter()
	r.Post("/therapists/search", h.Search)
	r.Get("/therapists/{therapistID}/availability", h.Availability)
	return r, apts
}

func TestSearchHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/therapists/search", strings.NewReader(`{"specialty":"grief"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "t-2", resp.Matches[0].Therapist.ID)
	assert.Equal(t, []string{"Blue Cross"}, resp.Matches[0].Therapist.AcceptedInsurance)
	assert.NotContains(t, rec.Body.String(), "refresh")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/therapists/search", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityHandler(t *testing.T) {
	router, apts := newTestRouter(t)
	loc := schedule.Location("Asia/Kolkata")
	require.NoError(t, apts.Create(context.Background(), &appointments.Appointment{
		TherapistID: "t-1",
		StartTime:   time.Date(2030, 3, 4, 10, 0, 0, 0, loc),
		EndTime:     time.Date(2030, 3, 4, 11, 0, 0, 0, loc),
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/therapists/t-1/availability?date=2030-03-04&timeZone=Asia/Kolkata", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Asia/Kolkata", resp.TimeZone)
	require.Len(t, resp.Slots, 7)
	assert.Equal(t, "2030-03-04T09:00:00", resp.Slots[0].StartTime)
	assert.Equal(t, "2030-03-04T11:00:00", resp.Slots[1].StartTime)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/therapists/t-1/availability?date=04/03/2030", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/therapists/unknown/availability", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
