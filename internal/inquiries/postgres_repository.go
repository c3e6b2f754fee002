package inquiries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes mapped to domain errors.
const (
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

// querier is the subset of pgxpool.Pool used here; pgxmock satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores inquiries in the relational database.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("inquiries: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const inquiryColumns = `id::text, patient_identifier, problem_description, extracted_specialty,
	requested_schedule, insurance_info, COALESCE(matched_therapist_id::text, ''), status, created_at, updated_at`

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, inq *Inquiry) error {
	if inq == nil || strings.TrimSpace(inq.PatientIdentifier) == "" {
		return ErrMissingPatient
	}
	if inq.ID == "" {
		inq.ID = uuid.New().String()
	}
	if inq.Status == "" {
		inq.Status = StatusPending
	}
	query := `
		INSERT INTO inquiries (id, patient_identifier, problem_description, extracted_specialty,
			requested_schedule, insurance_info, matched_therapist_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, $8)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.db.QueryRow(ctx, query,
		inq.ID,
		inq.PatientIdentifier,
		inq.ProblemDescription,
		inq.ExtractedSpecialty,
		inq.RequestedSchedule,
		inq.InsuranceInfo,
		inq.MatchedTherapistID,
		string(inq.Status),
	).Scan(&createdAt, &updatedAt); err != nil {
		if badTherapistRef(err) {
			return ErrUnknownTherapist
		}
		return fmt.Errorf("inquiries: insert failed: %w", err)
	}
	inq.CreatedAt = createdAt
	inq.UpdatedAt = updatedAt
	return nil
}

// Update writes changed fields; blank values never overwrite stored ones.
func (r *PostgresRepository) Update(ctx context.Context, inq *Inquiry) error {
	query := `
		UPDATE inquiries SET
			problem_description = COALESCE(NULLIF($2, ''), problem_description),
			extracted_specialty = COALESCE(NULLIF($3, ''), extracted_specialty),
			requested_schedule = COALESCE(NULLIF($4, ''), requested_schedule),
			insurance_info = COALESCE(NULLIF($5, ''), insurance_info),
			matched_therapist_id = COALESCE(NULLIF($6, '')::uuid, matched_therapist_id),
			status = COALESCE(NULLIF($7, ''), status),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + inquiryColumns
	row := r.db.QueryRow(ctx, query,
		inq.ID,
		inq.ProblemDescription,
		inq.ExtractedSpecialty,
		inq.RequestedSchedule,
		inq.InsuranceInfo,
		inq.MatchedTherapistID,
		string(inq.Status),
	)
	updated, err := scanInquiry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInquiryNotFound
		}
		if badTherapistRef(err) {
			return ErrUnknownTherapist
		}
		return fmt.Errorf("inquiries: update failed: %w", err)
	}
	*inq = *updated
	return nil
}

// GetByID fetches an inquiry by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Inquiry, error) {
	query := `SELECT ` + inquiryColumns + ` FROM inquiries WHERE id = $1`
	inq, err := scanInquiry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isPgCode(err, pgInvalidText) {
			return nil, ErrInquiryNotFound
		}
		return nil, fmt.Errorf("inquiries: select failed: %w", err)
	}
	return inq, nil
}

// GetLatestByPatient returns the patient's most recently created inquiry.
func (r *PostgresRepository) GetLatestByPatient(ctx context.Context, patientIdentifier string) (*Inquiry, error) {
	query := `SELECT ` + inquiryColumns + `
		FROM inquiries
		WHERE patient_identifier = $1
		ORDER BY created_at DESC
		LIMIT 1`
	inq, err := scanInquiry(r.db.QueryRow(ctx, query, strings.TrimSpace(patientIdentifier)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInquiryNotFound
		}
		return nil, fmt.Errorf("inquiries: select latest failed: %w", err)
	}
	return inq, nil
}

// badTherapistRef reports a write rejected because matched_therapist_id is
// malformed or unknown; it is the only caller-supplied uuid on a write.
func badTherapistRef(err error) bool {
	return isPgCode(err, pgForeignKeyViolation) || isPgCode(err, pgInvalidText)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func scanInquiry(row pgx.Row) (*Inquiry, error) {
	var inq Inquiry
	var status string
	if err := row.Scan(
		&inq.ID,
		&inq.PatientIdentifier,
		&inq.ProblemDescription,
		&inq.ExtractedSpecialty,
		&inq.RequestedSchedule,
		&inq.InsuranceInfo,
		&inq.MatchedTherapistID,
		&status,
		&inq.CreatedAt,
		&inq.UpdatedAt,
	); err != nil {
		return nil, err
	}
	inq.Status = Status(status)
	return &inq, nil
}
