package therapists

import "strings"

// Therapist is a service provider who can be matched and booked.
type Therapist struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Bio               string   `json:"bio"`
	Email             string   `json:"-"`
	Specialties       []string `json:"specialties"`
	AcceptedInsurance []string `json:"acceptedInsurance"`
	IsActive          bool     `json:"isActive"`

	// Calendar credentials are opaque to everything but the calendar sync.
	GoogleRefreshToken string `json:"-"`
	GoogleCalendarID   string `json:"-"`
}

// Summary is the shape presented to users as a pending match option.
type Summary struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Specialties       []string `json:"specialties,omitempty"`
	AcceptedInsurance []string `json:"acceptedInsurance,omitempty"`
	Bio               string   `json:"bio,omitempty"`
}

// Summary returns the public option view of the therapist.
func (t Therapist) Summary() Summary {
	return Summary{
		ID:                t.ID,
		Name:              t.Name,
		Specialties:       t.Specialties,
		AcceptedInsurance: t.AcceptedInsurance,
		Bio:               t.Bio,
	}
}

// HasCalendar reports whether calendar sync credentials are on file.
func (t Therapist) HasCalendar() bool {
	return strings.TrimSpace(t.GoogleRefreshToken) != ""
}

// CalendarID returns the target calendar, defaulting to the primary one.
func (t Therapist) CalendarID() string {
	if id := strings.TrimSpace(t.GoogleCalendarID); id != "" {
		return id
	}
	return "primary"
}

// Summaries converts therapists to their option view, preserving order.
func Summaries(list []Therapist) []Summary {
	out := make([]Summary, 0, len(list))
	for _, t := range list {
		out = append(out, t.Summary())
	}
	return out
}
