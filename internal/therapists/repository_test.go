package therapists

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCalendarCredentials(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo()

	tp, err := repo.GetByID(ctx, "t-2")
	require.NoError(t, err)
	assert.False(t, tp.HasCalendar())
	assert.Equal(t, "primary", tp.CalendarID())

	require.NoError(t, repo.SaveCalendarCredentials(ctx, "t-2", "refresh", "primary"))
	tp, err = repo.GetByID(ctx, "t-2")
	require.NoError(t, err)
	assert.True(t, tp.HasCalendar())

	assert.ErrorIs(t, repo.SaveCalendarCredentials(ctx, "nope", "r", "primary"), ErrTherapistNotFound)
	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrTherapistNotFound)
}

func TestCredentialsNeverSerialised(t *testing.T) {
	tp := Therapist{ID: "t-1", Name: "Dr. A", Email: "a@example.com", GoogleRefreshToken: "secret", IsActive: true}
	raw, err := json.Marshal(tp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "a@example.com")
}

func TestPostgresListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "name", "bio", "email", "specialties", "accepted_insurance", "is_active", "google_refresh_token", "google_calendar_id"}
	mock.ExpectQuery("FROM therapists\\s+WHERE is_active").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("t-1", "Dr. Asha Rao", "CBT", "asha@example.com", []string{"Anxiety"}, []string{"Aetna"}, true, "", "").
			AddRow("t-2", "Dr. Ben Ortiz", "Grief", "", []string{"Grief"}, []string{"Cigna"}, true, "tok", "primary"))

	list, err := NewPostgresRepository(mock).ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"Anxiety"}, list[0].Specialties)
	assert.True(t, list[1].HasCalendar())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveCalendarCredentials(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectExec("UPDATE therapists").
		WithArgs("t-1", "refresh", "primary").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE therapists").
		WithArgs("t-9", "refresh", "primary").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SaveCalendarCredentials(context.Background(), "t-1", "refresh", "primary"))
	assert.ErrorIs(t, repo.SaveCalendarCredentials(context.Background(), "t-9", "refresh", "primary"), ErrTherapistNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectExec("INSERT INTO therapists").
		WithArgs("11111111-1111-1111-1111-111111111111", "Dr. Asha Rao", "CBT", "asha@example.com", []string{"Anxiety"}, []string{}, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), Therapist{
		ID:          "11111111-1111-1111-1111-111111111111",
		Name:        "Dr. Asha Rao",
		Bio:         "CBT",
		Email:       "asha@example.com",
		Specialties: []string{"Anxiety"},
		IsActive:    true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, repo.Upsert(context.Background(), Therapist{Name: "no id"}))
}

func TestPostgresGetByIDMalformedID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("FROM therapists WHERE id = \\$1").
		WithArgs("dr-priya").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err = repo.GetByID(context.Background(), "dr-priya")
	assert.ErrorIs(t, err, ErrTherapistNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
