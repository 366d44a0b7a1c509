package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/neattend/neattend-api/pkg/config"
)

// ConsoleMailer logs messages instead of delivering them.
type ConsoleMailer struct {
	from   string
	logger *zap.Logger
}

// NewConsoleMailer builds a mailer that writes messages to the application log.
func NewConsoleMailer(cfg config.MailConfig, logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{
		from:   cfg.FromAddress,
		logger: logger,
	}
}

// Send records the message in the log.
func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (console)",
		zap.String("from", m.from),
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextBody),
	)
	return nil
}
