package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sendgrid/rest"
)

// Notifier sends transactional mail triggered by catalog actions.
type Notifier interface {
	SendWaitlistConfirmation(ctx context.Context, email, programTitle string) error
}

// sender is the part of the SendGrid client the notifier uses.
type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridNotifier struct {
	client    sender
	fromEmail string
	fromName  string
	logger    *slog.Logger
}

func NewSendGridNotifier(apiKey, fromEmail, fromName string, logger *slog.Logger) *SendGridNotifier {
	return &SendGridNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

func (n *SendGridNotifier) SendWaitlistConfirmation(ctx context.Context, email, programTitle string) error {
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("", email)
	subject, plain, htmlBody := waitlistConfirmation(programTitle)

	message := mail.NewSingleEmail(from, subject, to, plain, htmlBody)
	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send waitlist confirmation: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected waitlist confirmation: status %d", response.StatusCode)
	}

	n.logger.Info("Waitlist confirmation sent", "status_code", response.StatusCode)
	return nil
}

func waitlistConfirmation(programTitle string) (subject, plain, htmlBody string) {
	subject = fmt.Sprintf("You're on the waitlist for %s", programTitle)
	plain = fmt.Sprintf("Thanks for your interest in %s. We will email you as soon as enrollment opens.", programTitle)
	htmlBody = fmt.Sprintf("<p>Thanks for your interest in <strong>%s</strong>.</p><p>We will email you as soon as enrollment opens.</p>",
		html.EscapeString(programTitle))
	return subject, plain, htmlBody
}

// NopNotifier is used when no SendGrid key is configured.
type NopNotifier struct {
	Logger *slog.Logger
}

func (n NopNotifier) SendWaitlistConfirmation(ctx context.Context, email, programTitle string) error {
	if n.Logger != nil {
		n.Logger.Debug("Email disabled, skipping waitlist confirmation", "program", programTitle)
	}
	return nil
}
