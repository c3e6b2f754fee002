package conversation

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wolfman30/therapymatch-ai/internal/bookings"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
)

// notSpecified is how an absent value is written on the wire.
const notSpecified = "not specified"

// Optional is an extracted string that may be absent.
type Optional struct {
	value string
	set   bool
}

// Some returns a present value; blank input yields an absent one.
func Some(v string) Optional {
	v = strings.TrimSpace(v)
	if isAbsentMarker(v) {
		return Optional{}
	}
	return Optional{value: v, set: true}
}

// None returns an absent value.
func None() Optional { return Optional{} }

// Get returns the value and whether it is present.
func (o Optional) Get() (string, bool) { return o.value, o.set }

// Value returns the value or "" when absent.
func (o Optional) Value() string { return o.value }

// IsSet reports whether a value is present.
func (o Optional) IsSet() bool { return o.set }

func (o Optional) String() string {
	if !o.set {
		return notSpecified
	}
	return o.value
}

func (o Optional) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Optional) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = None()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Models occasionally answer with a number or list; keep the raw text.
		*o = Some(string(data))
		return nil
	}
	*o = Some(s)
	return nil
}

func isAbsentMarker(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", notSpecified, "none", "null", "unknown", "n/a", "na", "not mentioned", "not provided":
		return true
	}
	return false
}

// BookingIntent is the user's answer to an offer to book.
type BookingIntent string

const (
	IntentYes           BookingIntent = "yes"
	IntentNo            BookingIntent = "no"
	IntentClarification BookingIntent = "clarification"
	IntentUnspecified   BookingIntent = notSpecified
)

// ParseBookingIntent normalises free-form intent labels.
func ParseBookingIntent(s string) BookingIntent {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "affirmative", "confirm", "confirmed":
		return IntentYes
	case "no", "n", "false", "negative", "decline", "declined":
		return IntentNo
	case "clarification", "question", "unsure", "maybe":
		return IntentClarification
	default:
		return IntentUnspecified
	}
}

// ExtractedData is the structured reading of one user message.
type ExtractedData struct {
	Problem            Optional      `json:"problem"`
	Schedule           Optional      `json:"schedule"`
	Insurance          Optional      `json:"insurance"`
	BookingIntent      BookingIntent `json:"bookingIntent"`
	TherapistSelection *int          `json:"therapistSelection,omitempty"`
}

// Unspecified returns an extraction with every field absent.
func Unspecified() ExtractedData {
	return ExtractedData{BookingIntent: IntentUnspecified}
}

// Selection returns the 1-based option index, or 0 when none was detected.
func (e ExtractedData) Selection() int {
	if e.TherapistSelection == nil {
		return 0
	}
	return *e.TherapistSelection
}

func (e *ExtractedData) UnmarshalJSON(data []byte) error {
	var raw struct {
		Problem            Optional `json:"problem"`
		Schedule           Optional `json:"schedule"`
		Insurance          Optional `json:"insurance"`
		BookingIntent      string   `json:"bookingIntent"`
		TherapistSelection any      `json:"therapistSelection"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ExtractedData{
		Problem:       raw.Problem,
		Schedule:      raw.Schedule,
		Insurance:     raw.Insurance,
		BookingIntent: ParseBookingIntent(raw.BookingIntent),
	}
	if n := selectionNumber(raw.TherapistSelection); n > 0 {
		e.TherapistSelection = &n
	}
	return nil
}

func selectionNumber(v any) int {
	switch t := v.(type) {
	case float64:
		if t >= 1 && t == float64(int(t)) {
			return int(t)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// NextAction tells the caller what to do after a turn.
type NextAction string

const (
	ActionAwaitingInfo      NextAction = "awaiting-info"
	ActionFindTherapist     NextAction = "find-therapist"
	ActionTherapistSelected NextAction = "therapist-selected"
	ActionBookAppointment   NextAction = "book-appointment"
	ActionBooked            NextAction = "booked"
	ActionError             NextAction = "error"
)

// MessageRequest is one user message plus the caller-held session state.
type MessageRequest struct {
	UserMessage             string               `json:"userMessage"`
	PatientID               string               `json:"patientId,omitempty"`
	ConversationHistory     []ChatMessage        `json:"conversationHistory,omitempty"`
	MatchedTherapistID      string               `json:"matchedTherapistId,omitempty"`
	PendingTherapistMatches []therapists.Summary `json:"pendingTherapistMatches,omitempty"`
	TimeZone                string               `json:"timeZone,omitempty"`
}

// Response is the orchestrator's answer for one message.
type Response struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	NextAction    NextAction     `json:"nextAction"`
	InquiryID     string         `json:"inquiryId,omitempty"`
	TherapistID   string         `json:"therapistId,omitempty"`
	StartTime     string         `json:"startTime,omitempty"`
	EndTime       string         `json:"endTime,omitempty"`
	TimeZone      string         `json:"timeZone,omitempty"`
	ExtractedData *ExtractedData `json:"extractedData,omitempty"`
	Crisis        bool           `json:"crisis,omitempty"`
	Error         string         `json:"error,omitempty"`

	// PendingTherapistMatches replaces the caller's option list when non-empty;
	// ClearPendingMatches tells the caller to drop it.
	PendingTherapistMatches []therapists.Summary `json:"pendingTherapistMatches,omitempty"`
	ClearPendingMatches     bool                 `json:"clearPendingMatches,omitempty"`

	Appointment         *bookings.AppointmentView `json:"appointment,omitempty"`
	CalendarSyncWarning string                    `json:"calendarSyncWarning,omitempty"`
}
