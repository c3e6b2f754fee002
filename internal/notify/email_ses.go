package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// categoryTag is the SES message tag carrying EmailMessage.Category.
const categoryTag = "category"

// sesAPI is the slice of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds configuration for AWS SES. ConfigurationSet is optional.
type SESConfig struct {
	FromEmail        string
	FromName         string
	ConfigurationSet string
}

// SESSender sends through the SES v2 API.
type SESSender struct {
	client sesAPI
	cfg    SESConfig
	logger *logging.Logger
}

// NewSESSender returns nil without a client or sender address.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil || strings.TrimSpace(cfg.FromEmail) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.FromName = fromNameOrDefault(cfg.FromName)
	return &SESSender{client: client, cfg: cfg, logger: logger}
}

// Send delivers msg as a simple SES message.
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	output, err := s.client.SendEmail(ctx, s.buildInput(msg))
	if err != nil {
		return fmt.Errorf("notify: SES send failed: %w", err)
	}
	s.logger.Info("email sent", "provider", "ses", "to", maskAddress(msg.To), "category", msg.Category, "message_id", aws.ToString(output.MessageId))
	return nil
}

func (s *SESSender) buildInput(msg EmailMessage) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8Content(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(msg.Subject), Body: body},
		},
	}
	if s.cfg.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(s.cfg.ConfigurationSet)
	}
	if msg.Category != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String(categoryTag), Value: aws.String(msg.Category)}}
	}
	return input
}

func utf8Content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

var _ EmailSender = (*SESSender)(nil)
