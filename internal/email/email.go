// Package email delivers drafted outreach emails.
package email

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
)

// Sender delivers one plain-text email. A false result with a nil error
// means the provider declined the message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (bool, error)
}

// New returns an SMTP sender, or a log-only sender when no SMTP
// credentials are configured.
func New(cfg config.EmailConfig) Sender {
	if cfg.Username == "" || cfg.Password == "" {
		zap.L().Warn("email: smtp credentials not configured, emails will only be logged")
		return LogSender{}
	}
	return NewSMTPSender(cfg)
}

// LogSender logs emails instead of sending them. It always succeeds.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(_ context.Context, to, subject, body string) (bool, error) {
	zap.L().Info("email: would send",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_length", len(body)),
	)
	zap.L().Debug("email: body", zap.String("body", body))
	return true, nil
}
