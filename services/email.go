package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"

	"github.com/resend/resend-go/v2"
)

const subscriptionCreatedTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
    <title>Registration confirmed</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
    <p>Hi {{.Name}},</p>
    <p>Your registration for <strong>{{.Program}}</strong> is confirmed.</p>
    {{if .EndAt}}<p>Your access runs until <strong>{{.EndAt}}</strong>.</p>{{end}}
    <p>You can check your subscription status any time from the app using
    the email or Telegram handle you registered with.</p>
    <p>— The team</p>
</body>
</html>`

// EmailService sends confirmation emails through Resend. With no API key
// configured it degrades to a disabled no-op that only logs.
type EmailService struct {
	client *resend.Client
	from   string
	tmpl   *template.Template
	logger *slog.Logger
}

// NewEmailService creates a new email service
func NewEmailService(apiKey, from string) *EmailService {
	svc := &EmailService{
		from:   from,
		tmpl:   template.Must(template.New("subscription-created").Parse(subscriptionCreatedTemplate)),
		logger: slog.With("service", "EmailService"),
	}
	if apiKey != "" {
		svc.client = resend.NewClient(apiKey)
	}
	return svc
}

// SubscriptionCreated sends the registration confirmation email
func (s *EmailService) SubscriptionCreated(ctx context.Context, sub *models.Subscription) error {
	if s.client == nil {
		s.logger.Warn("Email client is disabled, skipping confirmation email", "email", sub.Email)
		return nil
	}

	data := map[string]string{
		"Name":    sub.Name,
		"Program": sub.Program,
	}
	if sub.EndAt != nil {
		data["EndAt"] = sub.EndAt.Format("January 2, 2006")
	}

	var body bytes.Buffer
	if err := s.tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render confirmation email: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{sub.Email},
		Subject: fmt.Sprintf("Registration confirmed: %s", sub.Program),
		Html:    body.String(),
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}

	s.logger.Info("Confirmation email sent", "email", sub.Email, "message_id", sent.Id)
	return nil
}
