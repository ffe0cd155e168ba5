package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/quillscribe/portal/internal/model"
)

const fromName = "Quillscribe"

// MailSender sends a SendGrid v3 message. *sendgrid.Client implements it.
type MailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier emails contact messages and confirmation links.
type SendGridNotifier struct {
	client MailSender
	from   string
	to     string
	logger *slog.Logger
}

// NewSendGridNotifier creates a notifier using the SendGrid API key.
func NewSendGridNotifier(apiKey, from, to string, logger *slog.Logger) *SendGridNotifier {
	return NewSendGridNotifierWithClient(sendgrid.NewSendClient(apiKey), from, to, logger)
}

// NewSendGridNotifierWithClient creates a notifier with a custom sender.
func NewSendGridNotifierWithClient(client MailSender, from, to string, logger *slog.Logger) *SendGridNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridNotifier{
		client: client,
		from:   from,
		to:     to,
		logger: logger.With("component", "notify.sendgrid"),
	}
}

// Name implements Notifier.
func (n *SendGridNotifier) Name() string { return "sendgrid" }

// Notify emails msg to the operator address. Replies go to the sender.
func (n *SendGridNotifier) Notify(ctx context.Context, msg *model.ContactMessage) error {
	return n.send(ctx, ContactEmail(n.from, n.to, msg), msg.ID)
}

// SendConfirmation emails a confirmation link to a new user.
func (n *SendGridNotifier) SendConfirmation(ctx context.Context, email, link string) error {
	return n.send(ctx, ConfirmationEmail(n.from, email, link), "")
}

func (n *SendGridNotifier) send(ctx context.Context, message *mail.SGMailV3, messageID string) error {
	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		err := fmt.Errorf("sendgrid returned HTTP %d", resp.StatusCode)
		if isPermanentStatus(resp.StatusCode) {
			return Permanent(err)
		}
		return err
	}
	n.logger.Info("email sent",
		slog.String("message_id", messageID),
		slog.Int("status_code", resp.StatusCode),
	)
	return nil
}

// ContactEmail builds the operator notification for a contact message.
func ContactEmail(from, to string, msg *model.ContactMessage) *mail.SGMailV3 {
	subject := "[Contact] " + msg.Subject
	plain := fmt.Sprintf("From: %s <%s>\nSubject: %s\n\n%s\n", msg.Name, msg.Email, msg.Subject, msg.Message)
	htmlBody := fmt.Sprintf("<p><strong>From:</strong> %s &lt;%s&gt;</p><p><strong>Subject:</strong> %s</p><p>%s</p>",
		html.EscapeString(msg.Name),
		html.EscapeString(msg.Email),
		html.EscapeString(msg.Subject),
		strings.ReplaceAll(html.EscapeString(msg.Message), "\n", "<br>"),
	)

	message := mail.NewSingleEmail(mail.NewEmail(fromName, from), subject, mail.NewEmail("", to), plain, htmlBody)
	message.SetReplyTo(mail.NewEmail(msg.Name, msg.Email))
	return message
}

// ConfirmationEmail builds the email confirmation message.
func ConfirmationEmail(from, to, link string) *mail.SGMailV3 {
	plain := "Confirm your Quillscribe account by opening this link:\n\n" + link + "\n"
	htmlBody := fmt.Sprintf(`<p>Confirm your Quillscribe account:</p><p><a href="%s">Confirm email</a></p>`, html.EscapeString(link))
	return mail.NewSingleEmail(mail.NewEmail(fromName, from), "Confirm your email", mail.NewEmail("", to), plain, htmlBody)
}
