package bookings

import "errors"

var (
	// ErrMissingField is returned when therapist, start time or inquiry is absent.
	ErrMissingField = errors.New("bookings: missing required field")

	// ErrInvalidTime is returned when a start or end time cannot be read.
	ErrInvalidTime = errors.New("bookings: invalid time")

	// ErrPastTime is returned when the start time has already passed.
	ErrPastTime = errors.New("bookings: start time is in the past")

	// ErrSlotConflict is returned when the therapist is already booked.
	ErrSlotConflict = errors.New("bookings: slot already booked")

	// ErrNotFound is returned for unknown therapist, inquiry or appointment ids.
	ErrNotFound = errors.New("bookings: not found")

	// ErrCancelled is returned when rescheduling a cancelled appointment.
	ErrCancelled = errors.New("bookings: appointment is cancelled")
)

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) || errors.Is(err, ErrInvalidTime) || errors.Is(err, ErrPastTime)
}

// UserMessage turns a booking error into a short message fit for a patient.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "I need a therapist and a time to book that session. Could you tell me both?"
	case errors.Is(err, ErrInvalidTime):
		return "I couldn't read that time. Could you give me a date and time, like \"Dec 10 at 10am\"?"
	case errors.Is(err, ErrPastTime):
		return "That time has already passed. Could you pick a time in the future?"
	case errors.Is(err, ErrSlotConflict):
		return "That slot was just taken. Please pick another time."
	case errors.Is(err, ErrNotFound):
		return "I couldn't find that booking or therapist."
	case errors.Is(err, ErrCancelled):
		return "That appointment was already cancelled. Would you like to book a new one?"
	default:
		return "Sorry, something went wrong while booking. Please try again in a moment."
	}
}
