package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var appointmentsTracer = otel.Tracer("therapymatch.internal.appointments")

// Postgres error codes mapped to domain errors.
const (
	pgExclusionViolation  = "23P01"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists appointments. The appointments_no_overlap exclusion
// constraint is the authoritative double-booking guard.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const appointmentColumns = `id::text, inquiry_id::text, therapist_id::text, start_time, end_time, status,
	COALESCE(calendar_event_id, ''), created_at`

// Create inserts the appointment; an overlapping active booking yields ErrSlotConflict.
func (r *PostgresRepository) Create(ctx context.Context, apt *Appointment) error {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(attribute.String("therapymatch.therapist_id", apt.TherapistID))

	if apt.ID == "" {
		apt.ID = uuid.New().String()
	}
	if apt.Status == "" {
		apt.Status = StatusScheduled
	}
	var createdAt time.Time
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, inquiry_id, therapist_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		apt.ID, apt.InquiryID, apt.TherapistID, apt.StartTime, apt.EndTime, string(apt.Status),
	).Scan(&createdAt)
	if err != nil {
		span.RecordError(err)
		return mapWriteError("insert", err)
	}
	apt.CreatedAt = createdAt
	return nil
}

// GetByID fetches one appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	apt, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isPgCode(err, pgInvalidText) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return apt, nil
}

// ListOverlapping returns active appointments of the therapist intersecting [start, end).
func (r *PostgresRepository) ListOverlapping(ctx context.Context, therapistID string, start, end time.Time, excludeID string) ([]Appointment, error) {
	return r.list(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE therapist_id = $1
		  AND status <> 'cancelled'
		  AND start_time < $3 AND end_time > $2
		  AND ($4 = '' OR id::text <> $4)
		ORDER BY start_time`, therapistID, start, end, excludeID)
}

// ListByInquiry returns the inquiry's appointments, earliest first.
func (r *PostgresRepository) ListByInquiry(ctx context.Context, inquiryID string) ([]Appointment, error) {
	return r.list(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE inquiry_id = $1
		ORDER BY start_time`, inquiryID)
}

// UpdateStatus changes the appointment status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		if isPgCode(err, pgInvalidText) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("appointments: update status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Reschedule moves the appointment; the exclusion constraint rejects overlaps.
func (r *PostgresRepository) Reschedule(ctx context.Context, id string, start, end time.Time) error {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.reschedule")
	defer span.End()

	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET start_time = $2, end_time = $3, updated_at = now()
		WHERE id = $1`, id, start, end)
	if err != nil {
		span.RecordError(err)
		return mapWriteError("reschedule", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// SetCalendarEvent records the external calendar event id.
func (r *PostgresRepository) SetCalendarEvent(ctx context.Context, id, eventID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE appointments SET calendar_event_id = NULLIF($2, ''), updated_at = now() WHERE id = $1`, id, eventID)
	if err != nil {
		if isPgCode(err, pgInvalidText) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("appointments: set calendar event failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		if isPgCode(err, pgInvalidText) {
			return nil, nil
		}
		return nil, fmt.Errorf("appointments: query failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, *apt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows failed: %w", err)
	}
	return out, nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrSlotConflict
		case pgCheckViolation:
			return ErrInvalidRange
		case pgForeignKeyViolation:
			return ErrUnknownReference
		case pgInvalidText:
			if op == "insert" {
				return ErrUnknownReference
			}
			return ErrAppointmentNotFound
		}
	}
	return fmt.Errorf("appointments: %s failed: %w", op, err)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var apt Appointment
	var status string
	if err := row.Scan(
		&apt.ID,
		&apt.InquiryID,
		&apt.TherapistID,
		&apt.StartTime,
		&apt.EndTime,
		&status,
		&apt.CalendarEventID,
		&apt.CreatedAt,
	); err != nil {
		return nil, err
	}
	apt.Status = Status(status)
	return &apt, nil
}
