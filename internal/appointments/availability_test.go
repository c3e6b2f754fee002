package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableSlotsFullDay(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	checker := NewAvailabilityChecker(repo, func() time.Time { return now })

	slots, err := checker.AvailableSlots(context.Background(), "t-1", at(0, 0))
	require.NoError(t, err)
	require.Len(t, slots, 8)
	assert.Equal(t, at(9, 0), slots[0].Start)
	assert.Equal(t, at(10, 0), slots[0].End)
	assert.Equal(t, "9:00 AM", slots[0].Display)
	assert.Equal(t, "4:00 PM", slots[7].Display)
}

func TestAvailableSlotsExcludesBookedAndPast(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	require.NoError(t, repo.Create(ctx, &Appointment{TherapistID: "t-1", StartTime: at(10, 30), EndTime: at(11, 30)}))
	cancelled := &Appointment{TherapistID: "t-1", StartTime: at(14, 0), EndTime: at(15, 0)}
	require.NoError(t, repo.Create(ctx, cancelled))
	require.NoError(t, repo.UpdateStatus(ctx, cancelled.ID, StatusCancelled))

	now := at(9, 15)
	checker := NewAvailabilityChecker(repo, func() time.Time { return now })

	slots, err := checker.AvailableSlots(ctx, "t-1", at(12, 0))
	require.NoError(t, err)

	var hours []int
	for _, s := range slots {
		hours = append(hours, s.Start.Hour())
	}
	assert.Equal(t, []int{12, 13, 14, 15, 16}, hours)
}

func TestAvailableSlotsUsesDateLocation(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	checker := NewAvailabilityChecker(NewInMemoryRepository(), func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) })
	slots, err := checker.AvailableSlots(context.Background(), "t-1", time.Date(2030, 3, 4, 0, 0, 0, 0, kolkata))
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, kolkata, slots[0].Start.Location())
	assert.Equal(t, 9, slots[0].Start.Hour())
}

type failingLister struct{}

func (failingLister) ListOverlapping(context.Context, string, time.Time, time.Time, string) ([]Appointment, error) {
	return nil, errors.New("db down")
}

func TestAvailableSlotsPropagatesStoreErrors(t *testing.T) {
	checker := NewAvailabilityChecker(failingLister{}, nil)
	_, err := checker.AvailableSlots(context.Background(), "t-1", at(0, 0))
	assert.ErrorContains(t, err, "db down")
}
