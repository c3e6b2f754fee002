package therapists

import "errors"

// ErrTherapistNotFound is returned when a therapist id does not resolve.
var ErrTherapistNotFound = errors.New("therapist not found")
