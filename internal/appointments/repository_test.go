package appointments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2030, 3, 4, hour, minute, 0, 0, time.UTC)
}

func TestInMemoryCreateRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	first := &Appointment{InquiryID: "inq-1", TherapistID: "t-1", StartTime: at(10, 0), EndTime: at(11, 0)}
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, StatusScheduled, first.Status)
	assert.NotEmpty(t, first.ID)

	overlapping := &Appointment{InquiryID: "inq-2", TherapistID: "t-1", StartTime: at(10, 30), EndTime: at(11, 30)}
	assert.ErrorIs(t, repo.Create(ctx, overlapping), ErrSlotConflict)

	adjacent := &Appointment{InquiryID: "inq-2", TherapistID: "t-1", StartTime: at(11, 0), EndTime: at(12, 0)}
	assert.NoError(t, repo.Create(ctx, adjacent), "half-open intervals may touch")

	otherTherapist := &Appointment{InquiryID: "inq-3", TherapistID: "t-2", StartTime: at(10, 0), EndTime: at(11, 0)}
	assert.NoError(t, repo.Create(ctx, otherTherapist))

	inverted := &Appointment{TherapistID: "t-1", StartTime: at(15, 0), EndTime: at(14, 0)}
	assert.ErrorIs(t, repo.Create(ctx, inverted), ErrInvalidRange)
}

func TestInMemoryCancelledAppointmentsFreeTheSlot(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	apt := &Appointment{TherapistID: "t-1", StartTime: at(10, 0), EndTime: at(11, 0)}
	require.NoError(t, repo.Create(ctx, apt))
	require.NoError(t, repo.UpdateStatus(ctx, apt.ID, StatusCancelled))

	again := &Appointment{TherapistID: "t-1", StartTime: at(10, 0), EndTime: at(11, 0)}
	assert.NoError(t, repo.Create(ctx, again))

	overlapping, err := repo.ListOverlapping(ctx, "t-1", at(9, 0), at(17, 0), "")
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, again.ID, overlapping[0].ID)
}

func TestInMemoryConcurrentBookingsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Create(ctx, &Appointment{TherapistID: "t-1", StartTime: at(14, 0), EndTime: at(15, 0)})
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotConflict)
	}
	assert.Equal(t, 1, succeeded)
}

func TestInMemoryReschedule(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	a := &Appointment{InquiryID: "inq-1", TherapistID: "t-1", StartTime: at(10, 0), EndTime: at(11, 0)}
	b := &Appointment{InquiryID: "inq-1", TherapistID: "t-1", StartTime: at(13, 0), EndTime: at(14, 0)}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	assert.ErrorIs(t, repo.Reschedule(ctx, a.ID, at(13, 30), at(14, 30)), ErrSlotConflict)
	assert.NoError(t, repo.Reschedule(ctx, a.ID, at(10, 30), at(11, 30)), "an appointment may overlap its own old slot")
	assert.ErrorIs(t, repo.Reschedule(ctx, "missing", at(8, 0), at(9, 0)), ErrAppointmentNotFound)

	require.NoError(t, repo.SetCalendarEvent(ctx, a.ID, "evt-1"))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, at(10, 30), got.StartTime)
	assert.Equal(t, "evt-1", got.CalendarEventID)

	list, err := repo.ListByInquiry(ctx, "inq-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
}
