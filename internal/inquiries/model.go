package inquiries

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an inquiry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusMatched   Status = "matched"
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// Inquiry is a single end user's intake record. Empty strings mean "not yet known".
type Inquiry struct {
	ID                 string    `json:"id"`
	PatientIdentifier  string    `json:"patient_identifier"`
	ProblemDescription string    `json:"problem_description,omitempty"`
	ExtractedSpecialty string    `json:"extracted_specialty,omitempty"`
	RequestedSchedule  string    `json:"requested_schedule,omitempty"`
	InsuranceInfo      string    `json:"insurance_info,omitempty"`
	MatchedTherapistID string    `json:"matched_therapist_id,omitempty"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Fields are freshly extracted values for one message. Empty means unspecified.
type Fields struct {
	Problem    string
	Schedule   string
	Insurance  string
	RawMessage string
}

// New returns a pending inquiry for the patient.
func New(patientIdentifier string) *Inquiry {
	return &Inquiry{
		PatientIdentifier: strings.TrimSpace(patientIdentifier),
		Status:            StatusPending,
	}
}

// Clone returns a copy safe to mutate.
func (i *Inquiry) Clone() *Inquiry {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}

// Merge fills the inquiry with any specified field and never clears a known one.
// It reports whether anything changed.
func (i *Inquiry) Merge(f Fields) bool {
	changed := false
	if p := strings.TrimSpace(f.Problem); p != "" && p != i.ExtractedSpecialty {
		if i.ProblemDescription == "" {
			i.ProblemDescription = strings.TrimSpace(f.RawMessage)
			if i.ProblemDescription == "" {
				i.ProblemDescription = p
			}
		}
		i.ExtractedSpecialty = p
		changed = true
	}
	if s := strings.TrimSpace(f.Schedule); s != "" && s != i.RequestedSchedule {
		i.RequestedSchedule = s
		changed = true
	}
	if ins := strings.TrimSpace(f.Insurance); ins != "" && ins != i.InsuranceInfo {
		i.InsuranceInfo = ins
		changed = true
	}
	return changed
}

// MatchTherapist records a therapist match and moves a pending inquiry to matched.
func (i *Inquiry) MatchTherapist(therapistID string) bool {
	therapistID = strings.TrimSpace(therapistID)
	if therapistID == "" || therapistID == i.MatchedTherapistID {
		return false
	}
	i.MatchedTherapistID = therapistID
	if i.Status == "" || i.Status == StatusPending {
		i.Status = StatusMatched
	}
	return true
}

// HasProblem reports whether a presenting concern is known.
func (i *Inquiry) HasProblem() bool { return i != nil && i.ExtractedSpecialty != "" }

// HasSchedule reports whether a schedule preference is known.
func (i *Inquiry) HasSchedule() bool { return i != nil && i.RequestedSchedule != "" }

// HasInsurance reports whether insurance information is known.
func (i *Inquiry) HasInsurance() bool { return i != nil && i.InsuranceInfo != "" }

// Complete reports whether problem, schedule and insurance are all known.
func (i *Inquiry) Complete() bool {
	return i.HasProblem() && i.HasSchedule() && i.HasInsurance()
}

// mergeStored applies the store-boundary rule: incoming blanks keep the stored value.
func mergeStored(stored, incoming *Inquiry) *Inquiry {
	out := stored.Clone()
	keep := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	keep(&out.ProblemDescription, incoming.ProblemDescription)
	keep(&out.ExtractedSpecialty, incoming.ExtractedSpecialty)
	keep(&out.RequestedSchedule, incoming.RequestedSchedule)
	keep(&out.InsuranceInfo, incoming.InsuranceInfo)
	keep(&out.MatchedTherapistID, incoming.MatchedTherapistID)
	if incoming.Status != "" {
		out.Status = incoming.Status
	}
	return out
}
