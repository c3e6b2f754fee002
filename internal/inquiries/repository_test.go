package inquiries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	assert.ErrorIs(t, repo.Create(ctx, New(" ")), ErrMissingPatient)

	first := New("patient-1")
	first.ExtractedSpecialty = "anxiety"
	require.NoError(t, repo.Create(ctx, first))
	require.NotEmpty(t, first.ID)
	assert.Equal(t, StatusPending, first.Status)

	second := New("patient-1")
	require.NoError(t, repo.Create(ctx, second))

	latest, err := repo.GetLatestByPatient(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = repo.GetLatestByPatient(ctx, "someone-else")
	assert.ErrorIs(t, err, ErrInquiryNotFound)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrInquiryNotFound)
}

func TestInMemoryUpdatePreservesKnownValues(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	inq := New("patient-1")
	inq.ExtractedSpecialty = "anxiety"
	inq.InsuranceInfo = "Aetna"
	require.NoError(t, repo.Create(ctx, inq))

	update := &Inquiry{ID: inq.ID, RequestedSchedule: "weekday mornings"}
	require.NoError(t, repo.Update(ctx, update))

	stored, err := repo.GetByID(ctx, inq.ID)
	require.NoError(t, err)
	assert.Equal(t, "anxiety", stored.ExtractedSpecialty)
	assert.Equal(t, "Aetna", stored.InsuranceInfo)
	assert.Equal(t, "weekday mornings", stored.RequestedSchedule)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Equal(t, stored, update, "update reflects the stored row")

	assert.ErrorIs(t, repo.Update(ctx, &Inquiry{ID: "missing"}), ErrInquiryNotFound)
}

func TestInMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	inq := New("patient-1")
	require.NoError(t, repo.Create(ctx, inq))

	got, err := repo.GetByID(ctx, inq.ID)
	require.NoError(t, err)
	got.InsuranceInfo = "mutated"

	again, err := repo.GetByID(ctx, inq.ID)
	require.NoError(t, err)
	assert.Empty(t, again.InsuranceInfo)
}
