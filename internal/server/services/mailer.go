package services

import (
	"context"

	"github.com/dmitrijs2005/pdfconv/internal/logging"
)

// Mailer delivers verification codes and password reset tokens.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes outgoing mail to the log instead of sending it. It is
// the only Mailer the reference server ships with.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(l logging.Logger) *LogMailer {
	return &LogMailer{log: l.With("module", "mailer")}
}

func (m *LogMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	m.log.Info(ctx, "verification code", "to", email, "code", code)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.log.Info(ctx, "password reset", "to", email, "token", token)
	return nil
}
