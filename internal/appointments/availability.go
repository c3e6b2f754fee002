package appointments

import (
	"context"
	"fmt"
	"time"
)

// Working hours offered to patients, in the therapist's display time zone.
const (
	OpeningHour = 9
	ClosingHour = 17
)

// OverlapLister is the storage needed to compute availability.
type OverlapLister interface {
	ListOverlapping(ctx context.Context, therapistID string, start, end time.Time, excludeID string) ([]Appointment, error)
}

// Slot is a free one-hour interval.
type Slot struct {
	Start   time.Time `json:"startTime"`
	End     time.Time `json:"endTime"`
	Display string    `json:"display"`
}

// AvailabilityChecker computes free hourly slots for a therapist.
type AvailabilityChecker struct {
	store OverlapLister
	now   func() time.Time
}

// NewAvailabilityChecker builds a checker; now defaults to time.Now.
func NewAvailabilityChecker(store OverlapLister, now func() time.Time) *AvailabilityChecker {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityChecker{store: store, now: now}
}

// AvailableSlots returns the free slots on the calendar day of date, interpreted
// in date's location. Slots that already started are excluded.
func (c *AvailabilityChecker) AvailableSlots(ctx context.Context, therapistID string, date time.Time) ([]Slot, error) {
	loc := date.Location()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), OpeningHour, 0, 0, 0, loc)
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), ClosingHour, 0, 0, 0, loc)

	booked, err := c.store.ListOverlapping(ctx, therapistID, dayStart, dayEnd, "")
	if err != nil {
		return nil, fmt.Errorf("appointments: availability: %w", err)
	}

	now := c.now()
	slots := make([]Slot, 0, ClosingHour-OpeningHour)
	for start := dayStart; start.Before(dayEnd); start = start.Add(DefaultDuration) {
		end := start.Add(DefaultDuration)
		if start.Before(now) {
			continue
		}
		if overlapsAny(booked, start, end) {
			continue
		}
		slots = append(slots, Slot{Start: start, End: end, Display: start.Format("3:04 PM")})
	}
	return slots, nil
}

func overlapsAny(list []Appointment, start, end time.Time) bool {
	for _, apt := range list {
		if apt.Active() && apt.Overlaps(start, end) {
			return true
		}
	}
	return false
}
