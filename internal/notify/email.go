// Package notify delivers best-effort booking notifications to therapists.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

const defaultFromName = "TherapyMatch"

// EmailSender delivers a single message.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one outbound email. Category tags the message with the
// provider (SendGrid category, SES message tag) so bounces can be grouped.
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	Body     string // plain text
	HTML     string // optional
	Category string
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  fromNameOrDefault(cfg.FromName),
		logger:    logger,
	}
}

// Send posts msg to SendGrid; any status of 400 or above is an error.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	response, err := s.client.SendWithContext(ctx, s.buildMessage(msg))
	if err != nil {
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Warn("sendgrid rejected email", "to", maskAddress(msg.To), "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}
	s.logger.Info("email sent", "provider", "sendgrid", "to", maskAddress(msg.To), "category", msg.Category, "status", response.StatusCode)
	return nil
}

func (s *SendGridSender) buildMessage(msg EmailMessage) *mail.SGMailV3 {
	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = msg.Body
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		htmlBody,
	)
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}
	return message
}

// StubEmailSender logs instead of sending; used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender creates a stub email sender.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

// Send records the message in the log and reports success.
func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("email not sent; no provider configured", "to", maskAddress(msg.To), "category", msg.Category, "subject", msg.Subject)
	return nil
}

func fromNameOrDefault(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return defaultFromName
}

// maskAddress keeps the first character of the local part and the domain,
// so logs identify a mailbox without carrying the full address.
func maskAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
