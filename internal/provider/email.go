package provider

import (
	"context"
	"fmt"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

// smtpDialer is the seam for tests; gomail dials eagerly on send.
type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers rich email through an SMTP relay.
type SMTPSender struct {
	dialer smtpDialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port <= 0 {
		return nil, fmt.Errorf("smtp port is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}

	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   strings.TrimSpace(from),
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (*Response, error) {
	if s == nil || s.dialer == nil {
		return nil, fmt.Errorf("smtp sender is not initialized")
	}
	if strings.TrimSpace(msg.Endpoint) == "" {
		return nil, &SendError{Message: "recipient email address is required", EndpointGone: true}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.Endpoint)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)

	if err := s.sendWithContext(ctx, m); err != nil {
		// SMTP relays rarely distinguish transient from permanent cleanly;
		// treat relay errors as retryable and let attempt caps bound them.
		return nil, &SendError{
			Message:   "smtp send failed",
			Transient: true,
			Cause:     err,
		}
	}

	return &Response{StatusCode: 250}, nil
}

// sendWithContext bounds the blocking DialAndSend call with ctx.
func (s *SMTPSender) sendWithContext(ctx context.Context, m *gomail.Message) error {
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
