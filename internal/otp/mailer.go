package otp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendMailer delivers verification codes through the Resend email API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (m *ResendMailer) SendCode(ctx context.Context, email, code string) error {
	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{email},
		Subject: "Your nextClass verification code",
		Text: fmt.Sprintf(
			"Your verification code is %s.\n\nIt expires in %d minutes. If you didn't request this, you can ignore this email.",
			code, int(TTL.Minutes()),
		),
	}
	if _, err := m.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending email. Used in
// development when no Resend API key is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendCode(_ context.Context, email, code string) error {
	m.Logger.Info("otp code (email delivery not configured)", "email", email, "code", code)
	return nil
}
