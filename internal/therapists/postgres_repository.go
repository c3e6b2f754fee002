package therapists

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgInvalidText is raised when an id is not a valid uuid.
const pgInvalidText = "22P02"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads therapists from the relational database.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("therapists: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const therapistColumns = `id::text, name, bio, email, specialties, accepted_insurance, is_active,
	COALESCE(google_refresh_token, ''), COALESCE(google_calendar_id, '')`

// ListActive returns active therapists ordered by creation.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]Therapist, error) {
	rows, err := r.db.Query(ctx, `SELECT `+therapistColumns+`
		FROM therapists
		WHERE is_active
		ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("therapists: list active failed: %w", err)
	}
	defer rows.Close()

	var out []Therapist
	for rows.Next() {
		t, err := scanTherapist(rows)
		if err != nil {
			return nil, fmt.Errorf("therapists: scan failed: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("therapists: rows failed: %w", err)
	}
	return out, nil
}

// GetByID fetches one therapist.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Therapist, error) {
	t, err := scanTherapist(r.db.QueryRow(ctx, `SELECT `+therapistColumns+` FROM therapists WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, ErrTherapistNotFound
		}
		return nil, fmt.Errorf("therapists: select failed: %w", err)
	}
	return t, nil
}

// SaveCalendarCredentials stores the OAuth refresh token for calendar sync.
func (r *PostgresRepository) SaveCalendarCredentials(ctx context.Context, id, refreshToken, calendarID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE therapists
		SET google_refresh_token = $2, google_calendar_id = $3, updated_at = now()
		WHERE id = $1`, id, refreshToken, calendarID)
	if err != nil {
		if isInvalidText(err) {
			return ErrTherapistNotFound
		}
		return fmt.Errorf("therapists: save calendar credentials failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTherapistNotFound
	}
	return nil
}

// Upsert inserts t or refreshes its profile fields. Calendar credentials are
// left untouched so reseeding never disconnects a linked calendar.
func (r *PostgresRepository) Upsert(ctx context.Context, t Therapist) error {
	if t.ID == "" || t.Name == "" {
		return fmt.Errorf("therapists: id and name are required")
	}
	if t.Specialties == nil {
		t.Specialties = []string{}
	}
	if t.AcceptedInsurance == nil {
		t.AcceptedInsurance = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO therapists (id, name, bio, email, specialties, accepted_insurance, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			email = EXCLUDED.email,
			specialties = EXCLUDED.specialties,
			accepted_insurance = EXCLUDED.accepted_insurance,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		t.ID, t.Name, t.Bio, t.Email, t.Specialties, t.AcceptedInsurance, t.IsActive)
	if err != nil {
		return fmt.Errorf("therapists: upsert failed: %w", err)
	}
	return nil
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidText
}

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist
	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Bio,
		&t.Email,
		&t.Specialties,
		&t.AcceptedInsurance,
		&t.IsActive,
		&t.GoogleRefreshToken,
		&t.GoogleCalendarID,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
