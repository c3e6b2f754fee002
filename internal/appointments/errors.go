package appointments

import "errors"

var (
	// ErrAppointmentNotFound is returned when an appointment id does not resolve.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotConflict is returned when a write would double-book a therapist.
	ErrSlotConflict = errors.New("appointment overlaps an existing booking")

	// ErrUnknownReference is returned when the therapist or inquiry an
	// appointment points at does not exist.
	ErrUnknownReference = errors.New("appointment references an unknown therapist or inquiry")
	// ErrInvalidRange is returned when end is not after start.
	ErrInvalidRange = errors.New("appointment end must be after start")
)
