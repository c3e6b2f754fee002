package bookings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/appointments", h.Book)
	r.Get("/appointments/{appointmentID}", h.Get)
	r.Post("/appointments/{appointmentID}/cancel", h.Cancel)
	r.Post("/appointments/{appointmentID}/reschedule", h.Reschedule)
	r.Get("/inquiries/{inquiryID}/appointments", h.ListForInquiry)
	return r
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandlerBookFlow(t *testing.T) {
	f := newFixture(t, false)
	router := newRouter(NewHandler(f.svc, logging.Default()))

	body := `{"inquiryId":"` + f.inquiry.ID + `","therapistId":"t-nocal","startTime":"2025-12-10T10:00:00","timeZone":"Asia/Kolkata"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Appointment)
	assert.Equal(t, "2025-12-10T10:00:00", resp.Appointment.StartTime)
	assert.Equal(t, "2025-12-10T11:00:00", resp.Appointment.EndTime)
	assert.Equal(t, "Asia/Kolkata", resp.Appointment.TimeZone)
	assert.NotEmpty(t, resp.CalendarSyncWarning)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp = decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "pick another time")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inquiries/"+f.inquiry.ID+"/appointments", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeResponse(t, rec)
	require.Len(t, resp.Appointments, 1)

	id := resp.Appointments[0].ID
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments/"+id+"/reschedule", strings.NewReader(`{"startTime":"2025-12-11T15:00:00"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-12-11T15:00:00", decodeResponse(t, rec).Appointment.StartTime)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments/"+id+"/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeResponse(t, rec).Appointment.Status)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t, false)
	router := newRouter(NewHandler(f.svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(`{"therapistId":"t-nocal","startTime":"2020-01-01T10:00:00","inquiryId":"`+f.inquiry.ID+`"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeResponse(t, rec).Message, "already passed")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/appointments/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeResponse(t, rec).Message, "couldn't find")
}

func TestStatusForUnexpected(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusConflict, StatusFor(ErrCancelled))
}
