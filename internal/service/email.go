package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
)

// Email kinds stored in the queue.
const (
	EmailKindVerification  = "verification"
	EmailKindPasswordReset = "password_reset"
	EmailKindEnrollment    = "enrollment"
)

// EmailService writes outgoing mail to the database queue. A scheduler job
// drains the queue; delivery itself is delegated to the configured sender.
type EmailService struct {
	q       *store.Queries
	baseURL string
}

// NewEmailService creates an email service. baseURL is used to build absolute
// links in message bodies.
func NewEmailService(q *store.Queries, baseURL string) *EmailService {
	return &EmailService{q: q, baseURL: baseURL}
}

// SendVerification queues the account verification email.
func (s *EmailService) SendVerification(ctx context.Context, recipient, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)
	body := fmt.Sprintf(
		"Welcome!\n\nPlease confirm your email address by opening this link:\n\n%s\n\n"+
			"If you did not create an account, you can ignore this message.\n", link)
	_, err := s.q.EnqueueEmail(ctx, store.EnqueueEmailParams{
		Recipient: recipient,
		Subject:   "Confirm your email address",
		Body:      body,
		Kind:      EmailKindVerification,
	})
	return err
}

// SendPasswordReset queues the password reset email.
func (s *EmailService) SendPasswordReset(ctx context.Context, recipient, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"Open this link within one hour to choose a new password:\n\n%s\n\n"+
			"If you did not request a reset, you can ignore this message.\n", link)
	_, err := s.q.EnqueueEmail(ctx, store.EnqueueEmailParams{
		Recipient: recipient,
		Subject:   "Reset your password",
		Body:      body,
		Kind:      EmailKindPasswordReset,
	})
	return err
}

// SendEnrollmentConfirmation queues the enrollment confirmation email.
func (s *EmailService) SendEnrollmentConfirmation(ctx context.Context, recipient, courseTitle, courseSlug string) error {
	link := fmt.Sprintf("%s/courses/%s", s.baseURL, courseSlug)
	body := fmt.Sprintf(
		"You are now enrolled in %q.\n\nStart learning here:\n\n%s\n", courseTitle, link)
	_, err := s.q.EnqueueEmail(ctx, store.EnqueueEmailParams{
		Recipient: recipient,
		Subject:   fmt.Sprintf("Enrolled in %s", courseTitle),
		Body:      body,
		Kind:      EmailKindEnrollment,
	})
	return err
}

// DeliverPending drains up to limit queued emails through the sender and
// updates their status. Returns the number of emails handled.
func (s *EmailService) DeliverPending(ctx context.Context, sender Sender, limit int64) (int, error) {
	pending, err := s.q.ListPendingEmails(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing pending emails: %w", err)
	}

	for _, email := range pending {
		status := model.EmailStatusSent
		if err := sender.Send(ctx, email); err != nil {
			slog.Error("email delivery failed",
				"id", email.ID, "recipient", email.Recipient, "error", err)
			status = model.EmailStatusFailed
		}
		if err := s.q.SetEmailStatus(ctx, email.ID, status); err != nil {
			return 0, fmt.Errorf("updating email %d status: %w", email.ID, err)
		}
	}
	return len(pending), nil
}

// Sender delivers a single queued email.
type Sender interface {
	Send(ctx context.Context, email model.QueuedEmail) error
}

// LogSender is the development sender: it logs messages instead of
// delivering them.
type LogSender struct{}

// Send logs the email and reports success.
func (LogSender) Send(_ context.Context, email model.QueuedEmail) error {
	slog.Info("outgoing email",
		"recipient", email.Recipient, "kind", email.Kind, "subject", email.Subject)
	return nil
}
