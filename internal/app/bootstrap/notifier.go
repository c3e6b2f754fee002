package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
	"github.com/wolfman30/therapymatch-ai/internal/notify"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// BuildNotifier picks SendGrid, then SES, then a logging stub for booking emails.
func BuildNotifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*notify.BookingNotifier, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewBookingNotifier(nil, logger), "stub"
	}

	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		return notify.NewBookingNotifier(sg, logger), "sendgrid"
	}

	if awsCfg != nil && cfg.SESFromEmail != "" {
		if ses := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.SendGridFromName,
			ConfigurationSet: cfg.SESConfigSet,
		}, logger); ses != nil {
			return notify.NewBookingNotifier(ses, logger), "ses"
		}
	}

	return notify.NewBookingNotifier(nil, logger), "stub"
}
