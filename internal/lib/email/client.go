// Package email renders and sends the transactional emails of the service.
//
// Bodies are html/template files embedded in the binary. Delivery goes
// through a Sender: SMTP (gomail) or the Resend API, chosen by config.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/deppfellow/lead-intake/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client renders templates and hands the result to a Sender.
type Client struct {
	sender Sender
	from   string
	logger *zerolog.Logger
}

// NewClient builds a Client with the sender selected by cfg.Mail.Provider.
func NewClient(cfg *config.Config, logger *zerolog.Logger) (*Client, error) {
	var sender Sender
	switch cfg.Mail.Provider {
	case ProviderSMTP:
		sender = NewSMTPSender(cfg.Mail.SMTP)
	case ProviderResend:
		sender = NewResendSender(cfg.Mail.ResendAPIKey)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}

	return NewClientWithSender(sender, formatAddress(cfg.Mail.FromName, cfg.Mail.From), logger), nil
}

// NewClientWithSender builds a Client around an existing Sender.
func NewClientWithSender(sender Sender, from string, logger *zerolog.Logger) *Client {
	return &Client{
		sender: sender,
		from:   from,
		logger: logger,
	}
}

func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

// Render executes templateName with data.
func (c *Client) Render(templateName Template, data any) (string, error) {
	tmpl, err := parseTemplate(templateName)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse email template %s", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", errors.Wrapf(err, "failed to execute email template %s", templateName)
	}
	return body.String(), nil
}

// SendEmail renders templateName and delivers it to a single recipient.
func (c *Client) SendEmail(ctx context.Context, to, subject string, templateName Template, data any) error {
	html, err := c.Render(templateName, data)
	if err != nil {
		return err
	}

	msg := &Message{
		From:    c.from,
		To:      to,
		Subject: subject,
		HTML:    html,
	}

	if err := c.sender.Send(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to send %s email", templateName)
	}

	c.logger.Debug().
		Str("template", string(templateName)).
		Str("to", to).
		Msg("email sent")

	return nil
}

func parseTemplate(name Template) (*template.Template, error) {
	return template.ParseFS(templateFS, fmt.Sprintf("templates/%s.html", name))
}
