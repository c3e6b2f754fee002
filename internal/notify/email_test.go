package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "a@example.com"}, nil))

	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "a@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, defaultFromName, sender.fromName)
}

func TestSendGridSenderNilClient(t *testing.T) {
	var sender *SendGridSender
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "x@example.com"}))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSenderBuildsMessage(t *testing.T) {
	assert.Nil(t, NewSESSender(&fakeSES{}, SESConfig{}, nil), "sender address is required")

	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "noreply@example.com"}, nil)
	require.NotNil(t, sender)

	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "t@example.com", Subject: "Hi", Body: "text", HTML: "<p>text</p>"}))
	assert.Equal(t, "TherapyMatch <noreply@example.com>", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"t@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "text", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>text</p>", aws.ToString(fake.input.Content.Simple.Body.Html.Data))
	assert.Nil(t, fake.input.ConfigurationSetName)
	assert.Empty(t, fake.input.EmailTags)

	fake.err = errors.New("throttled")
	assert.ErrorContains(t, sender.Send(context.Background(), EmailMessage{To: "t@example.com"}), "throttled")
}

func TestSESSenderTagsAndConfigurationSet(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "noreply@example.com", FromName: "Clinic", ConfigurationSet: "bookings"}, nil)
	require.NotNil(t, sender)

	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "t@example.com", Subject: "Hi", Body: "text", Category: "booking_booked"}))
	assert.Equal(t, "Clinic <noreply@example.com>", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, "bookings", aws.ToString(fake.input.ConfigurationSetName))
	require.Len(t, fake.input.EmailTags, 1)
	assert.Equal(t, "category", aws.ToString(fake.input.EmailTags[0].Name))
	assert.Equal(t, "booking_booked", aws.ToString(fake.input.EmailTags[0].Value))
	assert.Nil(t, fake.input.Content.Simple.Body.Html)
}

func TestSendGridBuildMessage(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "a@example.com", FromName: "  "}, nil)
	require.NotNil(t, sender)

	m := sender.buildMessage(EmailMessage{To: "t@example.com", ToName: "T", Subject: "Hi", Body: "plain", Category: "booking_cancelled"})
	assert.Equal(t, defaultFromName, m.From.Name)
	assert.Equal(t, []string{"booking_cancelled"}, m.Categories)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "plain", m.Content[1].Value, "html falls back to the text body")
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "a***@example.com", maskAddress(" asha@example.com "))
	assert.Equal(t, "***", maskAddress("not-an-address"))
	assert.Equal(t, "***", maskAddress("@example.com"))
	assert.Equal(t, "***", maskAddress(""))
}

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestBookingNotifier(t *testing.T) {
	rec := &recordingSender{}
	n := NewBookingNotifier(rec, nil)
	start := time.Date(2025, 12, 10, 10, 0, 0, 0, time.UTC)

	n.Notify(context.Background(), BookingNotice{TherapistName: "Dr. Asha Rao", InquiryID: "inq-1", Start: start})
	assert.Empty(t, rec.sent, "no address means no email")

	n.Notify(context.Background(), BookingNotice{
		TherapistName: "Dr. Asha Rao",
		TherapistMail: "asha@example.com",
		InquiryID:     "inq-1",
		Concern:       "anxiety <acute>",
		Start:         start,
		End:           start.Add(time.Hour),
	})
	require.Len(t, rec.sent, 1)
	msg := rec.sent[0]
	assert.Equal(t, "asha@example.com", msg.To)
	assert.Contains(t, msg.Subject, "Session booked")
	assert.Contains(t, msg.Body, "Hi Asha,")
	assert.Contains(t, msg.Body, "Inquiry ID: inq-1")
	assert.Contains(t, msg.HTML, "anxiety &lt;acute&gt;")
	assert.Equal(t, "booking_booked", msg.Category)

	rec.err = errors.New("smtp down")
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), BookingNotice{TherapistMail: "asha@example.com", Kind: "cancelled", Start: start})
	})
}
