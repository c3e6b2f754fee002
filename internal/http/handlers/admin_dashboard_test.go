package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

var (
	inquiryQuery     = regexp.QuoteMeta("FROM inquiries i")
	appointmentQuery = regexp.QuoteMeta("FROM appointments a")
)

func TestGetAdminData_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewAdminDashboardHandler(db, logging.Default())
	created := time.Date(2025, 11, 20, 4, 30, 0, 0, time.UTC)

	mock.ExpectQuery(inquiryQuery).WithArgs(100).WillReturnRows(
		sqlmock.NewRows([]string{"id", "patient_identifier", "problem_description", "extracted_specialty",
			"requested_schedule", "insurance_info", "matched_therapist_id", "name", "status", "created_at"}).
			AddRow("inq-2", "p-2", "I can't sleep", "insomnia", "", "", nil, nil, "pending", created).
			AddRow("inq-1", "p-1", "I feel anxious", "anxiety", "weekday evenings", "Aetna", "t-1", "Dr. Anita Rao", "scheduled", created.Add(-time.Hour)))
	mock.ExpectQuery(appointmentQuery).WithArgs(100).WillReturnRows(
		sqlmock.NewRows([]string{"id", "inquiry_id", "therapist_id", "name", "start_time", "end_time", "status", "calendar_event_id", "created_at"}).
			AddRow("apt-1", "inq-1", "t-1", "Dr. Anita Rao",
				time.Date(2025, 12, 10, 4, 30, 0, 0, time.UTC), time.Date(2025, 12, 10, 5, 30, 0, 0, time.UTC),
				"scheduled", "evt-9", created))

	req := httptest.NewRequest(http.MethodGet, "/admin/data?timeZone=Asia/Kolkata", nil)
	rec := httptest.NewRecorder()
	handler.GetAdminData(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AdminDataResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	require.Len(t, resp.Inquiries, 2)
	assert.Equal(t, "inq-2", resp.Inquiries[0].ID)
	assert.Nil(t, resp.Inquiries[0].TherapistName)
	require.NotNil(t, resp.Inquiries[1].TherapistName)
	assert.Equal(t, "Dr. Anita Rao", *resp.Inquiries[1].TherapistName)

	require.Len(t, resp.Appointments, 1)
	assert.Equal(t, "2025-12-10T10:00:00", resp.Appointments[0].StartTime)
	assert.Equal(t, "2025-12-10T11:00:00", resp.Appointments[0].EndTime)
	assert.Equal(t, "Asia/Kolkata", resp.TimeZone)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAdminData_InvalidLimit(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewAdminDashboardHandler(db, nil)
	rec := httptest.NewRecorder()
	handler.GetAdminData(rec, httptest.NewRequest(http.MethodGet, "/admin/data?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAdminData_CapsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(inquiryQuery).WithArgs(maxAdminLimit).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(appointmentQuery).WithArgs(maxAdminLimit).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	handler := NewAdminDashboardHandler(db, nil)
	rec := httptest.NewRecorder()
	handler.GetAdminData(rec, httptest.NewRequest(http.MethodGet, "/admin/data?limit=10000", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAdminData_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(inquiryQuery).WillReturnError(errors.New("connection reset"))

	handler := NewAdminDashboardHandler(db, nil)
	rec := httptest.NewRecorder()
	handler.GetAdminData(rec, httptest.NewRequest(http.MethodGet, "/admin/data", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListTherapists_ScansArrays(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM therapists")).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "email", "specialties", "accepted_insurance", "is_active", "calendar_connected"}).
			AddRow("t-1", "Dr. Anita Rao", "anita@example.com", "{anxiety,stress}", "{Aetna,\"Blue Cross Blue Shield\"}", true, true).
			AddRow("t-2", "Dr. Vikram Mehta", "vikram@example.com", "{depression}", "{}", false, false))

	handler := NewAdminDashboardHandler(db, logging.Default())
	rec := httptest.NewRecorder()
	handler.ListTherapists(rec, httptest.NewRequest(http.MethodGet, "/admin/therapists", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListTherapistsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	require.Equal(t, 2, resp.Total)
	assert.Equal(t, []string{"anxiety", "stress"}, resp.Therapists[0].Specialties)
	assert.Equal(t, []string{"Aetna", "Blue Cross Blue Shield"}, resp.Therapists[0].AcceptedInsurance)
	assert.True(t, resp.Therapists[0].CalendarConnected)
	assert.Empty(t, resp.Therapists[1].AcceptedInsurance)
	assert.False(t, resp.Therapists[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
