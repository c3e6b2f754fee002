package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// BookingNotice describes a booking change a therapist should hear about.
type BookingNotice struct {
	Kind          string // booked, rescheduled, cancelled
	TherapistName string
	TherapistMail string
	InquiryID     string
	Concern       string
	Start         time.Time
	End           time.Time
}

// BookingNotifier emails therapists about their bookings. Failures are logged only.
type BookingNotifier struct {
	email  EmailSender
	logger *logging.Logger
}

// NewBookingNotifier wraps an email sender.
func NewBookingNotifier(email EmailSender, logger *logging.Logger) *BookingNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &BookingNotifier{email: email, logger: logger}
}

// Notify sends the notice if the therapist has an address on file.
func (n *BookingNotifier) Notify(ctx context.Context, notice BookingNotice) {
	if n == nil || strings.TrimSpace(notice.TherapistMail) == "" {
		return
	}
	if err := n.email.Send(ctx, buildBookingEmail(notice)); err != nil {
		n.logger.Warn("booking notification failed", "inquiry_id", notice.InquiryID, "kind", notice.Kind, "error", err)
	}
}

func buildBookingEmail(notice BookingNotice) EmailMessage {
	kind := notice.Kind
	if kind == "" {
		kind = "booked"
	}
	when := notice.Start.Format("Monday, January 2 at 3:04 PM MST")
	subject := fmt.Sprintf("Session %s: %s", kind, notice.Start.Format("Jan 2, 3:04 PM"))

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstName(notice.TherapistName))
	fmt.Fprintf(&b, "A session has been %s for %s.\n", kind, when)
	if notice.Concern != "" {
		fmt.Fprintf(&b, "Presenting concern: %s\n", notice.Concern)
	}
	fmt.Fprintf(&b, "Inquiry ID: %s\n", notice.InquiryID)

	htmlBody := "<p>" + strings.ReplaceAll(html.EscapeString(b.String()), "\n", "<br>") + "</p>"
	return EmailMessage{
		To:       notice.TherapistMail,
		ToName:   notice.TherapistName,
		Subject:  subject,
		Body:     b.String(),
		HTML:     htmlBody,
		Category: "booking_" + kind,
	}
}

func firstName(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "Dr."))
	if name == "" {
		return "there"
	}
	return strings.Fields(name)[0]
}
