package appointments

import "time"

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// DefaultDuration is the length of a session when no end time is given.
const DefaultDuration = time.Hour

// Appointment is a booked session between an inquiry and a therapist.
type Appointment struct {
	ID              string    `json:"id"`
	InquiryID       string    `json:"inquiryId"`
	TherapistID     string    `json:"therapistId"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Status          Status    `json:"status"`
	CalendarEventID string    `json:"calendarEventId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Active reports whether the appointment still holds its slot.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// Overlaps applies the half-open interval rule [start, end).
func (a Appointment) Overlaps(start, end time.Time) bool {
	return Overlaps(a.StartTime, a.EndTime, start, end)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
