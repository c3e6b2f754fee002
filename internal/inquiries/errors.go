package inquiries

import "errors"

var (
	// ErrInquiryNotFound is returned when no inquiry matches the lookup.
	ErrInquiryNotFound = errors.New("inquiry not found")

	// ErrUnknownTherapist is returned when the matched therapist id does not
	// reference an existing therapist.
	ErrUnknownTherapist = errors.New("matched therapist does not exist")

	// ErrMissingPatient is returned when an inquiry has no patient identifier.
	ErrMissingPatient = errors.New("patient identifier is required")
)
