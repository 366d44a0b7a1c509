package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/neattend/neattend-api/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	TextBody  string
	HTMLBody  string
}

// Mailer delivers messages to recipients.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewFromConfig selects a mailer implementation based on configuration.
// Unknown providers fall back to the console mailer so credential delivery
// never blocks onboarding in development.
func NewFromConfig(cfg config.MailConfig, logger *zap.Logger) Mailer {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendgridAPIKey != "" {
			return NewSendgridMailer(cfg, logger)
		}
		if logger != nil {
			logger.Warn("sendgrid selected without api key, using console mailer")
		}
		return NewConsoleMailer(cfg, logger)
	default:
		return NewConsoleMailer(cfg, logger)
	}
}
