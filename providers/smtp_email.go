package providers

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"weathernotify.app/config"
	"weathernotify.app/errors"
)

// SMTPEmailProvider sends mail over plain-auth SMTP.
type SMTPEmailProvider struct {
	cfg *config.EmailConfig
}

// NewSMTPEmailProvider creates an email provider for the configured SMTP server
func NewSMTPEmailProvider(cfg *config.EmailConfig) *SMTPEmailProvider {
	return &SMTPEmailProvider{cfg: cfg}
}

// SendEmail delivers one message to the recipient.
func (p *SMTPEmailProvider) SendEmail(to, subject, body string, isHTML bool) error {
	if to == "" {
		return errors.NewValidationError("recipient email cannot be empty")
	}
	if subject == "" {
		return errors.NewValidationError("email subject cannot be empty")
	}

	addr := fmt.Sprintf("%s:%d", p.cfg.SMTPHost, p.cfg.SMTPPort)
	auth := smtp.PlainAuth("", p.cfg.SMTPUsername, p.cfg.SMTPPassword, p.cfg.SMTPHost)
	message := p.buildMessage(to, subject, body, isHTML)

	if err := smtp.SendMail(addr, auth, p.cfg.FromAddress, []string{to}, message); err != nil {
		return errors.NewEmailError("failed to send email", err)
	}

	slog.Debug("email sent", "to", to, "subject", subject)
	return nil
}

// buildMessage assembles headers and body. Line breaks are stripped from
// the subject to block header injection.
func (p *SMTPEmailProvider) buildMessage(to, subject, body string, isHTML bool) []byte {
	subject = strings.NewReplacer("\r", "", "\n", "").Replace(subject)

	contentType := "text/plain"
	if isHTML {
		contentType = "text/html"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", p.cfg.FromName, p.cfg.FromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(body)

	return []byte(b.String())
}
