package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
)

func testParse(now time.Time) func(string) schedule.Window {
	p := &schedule.Parser{Now: fixedClock(now), Location: now.Location()}
	return func(phrase string) schedule.Window { return p.Parse(phrase, 0) }
}

func intPtr(n int) *int { return &n }

func TestDecideMergesWithoutClearing(t *testing.T) {
	stored := &inquiries.Inquiry{ID: "inq-1", ExtractedSpecialty: "anxiety", Status: inquiries.StatusPending}
	ex := Unspecified()
	ex.Insurance = Some("Aetna")

	out := decide(turnInput{Inquiry: stored, UserText: "I have Aetna", Extracted: ex})

	assert.Equal(t, "anxiety", out.Inquiry.ExtractedSpecialty)
	assert.Equal(t, "Aetna", out.Inquiry.InsuranceInfo)
	assert.Equal(t, ActionAwaitingInfo, out.Response.NextAction)
	assert.True(t, out.NeedsReply)
	assert.Empty(t, stored.InsuranceInfo, "input inquiry is not mutated")
}

func TestDecideCompleteWithoutMatchFindsTherapist(t *testing.T) {
	stored := &inquiries.Inquiry{ExtractedSpecialty: "stress", RequestedSchedule: "weekends"}
	ex := Unspecified()
	ex.Insurance = Some("self-pay")

	out := decide(turnInput{Inquiry: stored, Extracted: ex})
	assert.Equal(t, ActionFindTherapist, out.Response.NextAction)
	assert.True(t, out.NeedsReply)
}

func TestDecideSelection(t *testing.T) {
	ex := Unspecified()
	ex.TherapistSelection = intPtr(2)

	out := decide(turnInput{Inquiry: inquiries.New("p1"), Extracted: ex, Pending: sampleOptions()})

	assert.Equal(t, ActionTherapistSelected, out.Response.NextAction)
	assert.Equal(t, "t2", out.Response.TherapistID)
	assert.True(t, out.Response.ClearPendingMatches)
	assert.Equal(t, "t2", out.Inquiry.MatchedTherapistID)
	assert.Equal(t, inquiries.StatusMatched, out.Inquiry.Status)
	assert.Contains(t, out.Response.Message, "Dr. Priya Sharma")
	assert.False(t, out.NeedsReply)
}

func TestDecideSelectionOutOfRangeIgnored(t *testing.T) {
	ex := Unspecified()
	ex.TherapistSelection = intPtr(4)

	out := decide(turnInput{Inquiry: inquiries.New("p1"), Extracted: ex, Pending: sampleOptions()})
	assert.Equal(t, ActionAwaitingInfo, out.Response.NextAction)
	assert.Empty(t, out.Inquiry.MatchedTherapistID)
}

func TestDecideBookingIntent(t *testing.T) {
	now := time.Date(2025, 11, 20, 12, 0, 0, 0, kolkata())
	matched := &inquiries.Inquiry{ID: "inq-1", MatchedTherapistID: "t1", Status: inquiries.StatusMatched, RequestedSchedule: "weekday evenings"}

	t.Run("yes with fresh schedule", func(t *testing.T) {
		ex := Unspecified()
		ex.BookingIntent = IntentYes
		ex.Schedule = Some("Dec 10 at 10am")

		out := decide(turnInput{Inquiry: matched, Extracted: ex, Parse: testParse(now), TimeZone: "Asia/Kolkata"})
		require.Equal(t, ActionBookAppointment, out.Response.NextAction)
		assert.Equal(t, "2025-12-10T10:00:00", out.Response.StartTime)
		assert.Equal(t, "2025-12-10T11:00:00", out.Response.EndTime)
		assert.Equal(t, "t1", out.Response.TherapistID)
		assert.Equal(t, "Asia/Kolkata", out.Response.TimeZone)
		assert.Equal(t, "Wonderful! I'm booking your session for Wednesday, December 10 at 10:00 AM.", out.Response.Message)
	})

	t.Run("yes without any schedule asks for one", func(t *testing.T) {
		bare := matched.Clone()
		bare.RequestedSchedule = ""
		ex := Unspecified()
		ex.BookingIntent = IntentYes

		out := decide(turnInput{Inquiry: bare, Extracted: ex, Parse: testParse(now)})
		assert.Equal(t, ActionAwaitingInfo, out.Response.NextAction)
		assert.Equal(t, askDayAndTimeMessage, out.Response.Message)
	})

	t.Run("no keeps the match", func(t *testing.T) {
		ex := Unspecified()
		ex.BookingIntent = IntentNo

		out := decide(turnInput{Inquiry: matched, Extracted: ex})
		assert.Equal(t, ActionAwaitingInfo, out.Response.NextAction)
		assert.Equal(t, declinedBookingMessage, out.Response.Message)
		assert.Equal(t, "t1", out.Inquiry.MatchedTherapistID)
	})

	t.Run("clarification", func(t *testing.T) {
		ex := Unspecified()
		ex.BookingIntent = IntentClarification

		out := decide(turnInput{Inquiry: matched, Extracted: ex})
		assert.Equal(t, clarifyBookingMessage, out.Response.Message)
	})
}

func TestDecideCompleteAndMatchedOffersBooking(t *testing.T) {
	inq := &inquiries.Inquiry{ExtractedSpecialty: "grief", RequestedSchedule: "mornings", InsuranceInfo: "Cigna", MatchedTherapistID: "t3"}
	out := decide(turnInput{Inquiry: inq, Extracted: Unspecified()})
	assert.Equal(t, ActionAwaitingInfo, out.Response.NextAction)
	assert.Equal(t, confirmBookingMessage, out.Response.Message)
	assert.False(t, out.NeedsReply)
}
