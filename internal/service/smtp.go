package service

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/openlms/openlms/internal/model"
)

// SMTPSender delivers queued emails through a plain SMTP relay.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender creates a sender for the given relay address (host:port).
func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from}
}

// Send delivers a single queued email.
func (s *SMTPSender) Send(_ context.Context, email model.QueuedEmail) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		s.from, email.Recipient, email.Subject, email.Body))
	if err := smtp.SendMail(s.addr, nil, s.from, []string{email.Recipient}, msg); err != nil {
		return fmt.Errorf("sending email to %s: %w", email.Recipient, err)
	}
	return nil
}
