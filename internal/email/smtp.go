package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// SMTPNotifier sends emails via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Postmark SMTP (production): Uses username/password authentication
// - Any standard SMTP server
type SMTPNotifier struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

// NewSMTPNotifier creates a new SMTP-based notifier. baseURL is the
// application's public URL, used for links in email bodies.
func NewSMTPNotifier(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPNotifier, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Funcs(emailTemplateFuncs()).Parse(receiptTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPNotifier{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
	}, nil
}

// SendPurchaseReceipt sends a receipt for a completed transaction.
func (s *SMTPNotifier) SendPurchaseReceipt(ctx context.Context, to, name string, receipt Receipt) error {
	data := map[string]interface{}{
		"Name":       name,
		"Receipt":    receipt,
		"AccountURL": s.baseURL + "/account",
		"Year":       time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("purchase_receipt", data)
	if err != nil {
		return fmt.Errorf("failed to render purchase receipt template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Thanks for your order. Your payment reference is %s.

%s
Total: %s

You can access your downloads from your account page:

%s
`, name, receipt.PaymentKey, textItems(receipt), formatCents(receipt.TotalCents), s.baseURL+"/account")

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Your purchase receipt",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendRefundNotice notifies a member that a transaction was refunded.
func (s *SMTPNotifier) SendRefundNotice(ctx context.Context, to, name string, receipt Receipt) error {
	data := map[string]interface{}{
		"Name":    name,
		"Receipt": receipt,
		"Year":    time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("refund_notice", data)
	if err != nil {
		return fmt.Errorf("failed to render refund notice template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Your order %s has been refunded.

%s
Refunded total: %s

If you have any questions, just reply to this email.
`, name, receipt.PaymentKey, textItems(receipt), formatCents(receipt.TotalCents))

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Your order has been refunded",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// send sends an email via SMTP.
func (s *SMTPNotifier) send(ctx context.Context, email Email) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	msg := s.buildMessage(email)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Mailhog needs no auth
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPNotifier) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============MEMBER_DOWNLOADS_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// renderTemplate renders an email template with the given data.
func (s *SMTPNotifier) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// textItems renders receipt line items for the plain text part.
func textItems(receipt Receipt) string {
	var b strings.Builder
	for _, item := range receipt.Items {
		fmt.Fprintf(&b, "  %s  %s\n", item.Name, formatCents(item.PriceCents))
	}
	return b.String()
}

// formatCents renders an amount in cents as a dollar string.
func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// emailTemplateFuncs returns template functions available in email templates.
func emailTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": formatCents,
		"currentYear": func() int {
			return time.Now().Year()
		},
	}
}

// receiptTemplates holds the HTML bodies. These are deliberately plain;
// transactional mail renders more reliably without heavy markup.
const receiptTemplates = `
{{define "purchase_receipt"}}
<html>
<body style="font-family: sans-serif; color: #222;">
<p>Hi {{.Name}},</p>
<p>Thanks for your order. Your payment reference is <strong>{{.Receipt.PaymentKey}}</strong>.</p>
<table cellpadding="4">
{{range .Receipt.Items}}<tr><td>{{.Name}}</td><td align="right">{{money .PriceCents}}</td></tr>
{{end}}<tr><td><strong>Total</strong></td><td align="right"><strong>{{money .Receipt.TotalCents}}</strong></td></tr>
</table>
<p>You can access your downloads from your <a href="{{.AccountURL}}">account page</a>.</p>
<p style="color: #888; font-size: 12px;">&copy; {{.Year}}</p>
</body>
</html>
{{end}}

{{define "refund_notice"}}
<html>
<body style="font-family: sans-serif; color: #222;">
<p>Hi {{.Name}},</p>
<p>Your order <strong>{{.Receipt.PaymentKey}}</strong> has been refunded.</p>
<table cellpadding="4">
{{range .Receipt.Items}}<tr><td>{{.Name}}</td><td align="right">{{money .PriceCents}}</td></tr>
{{end}}<tr><td><strong>Refunded total</strong></td><td align="right"><strong>{{money .Receipt.TotalCents}}</strong></td></tr>
</table>
<p>If you have any questions, just reply to this email.</p>
<p style="color: #888; font-size: 12px;">&copy; {{.Year}}</p>
</body>
</html>
{{end}}
`

var _ Notifier = (*SMTPNotifier)(nil)
