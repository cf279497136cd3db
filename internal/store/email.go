package store

import (
	"context"
	"time"

	"github.com/openlms/openlms/internal/model"
)

// EnqueueEmailParams holds the fields of an outgoing email.
type EnqueueEmailParams struct {
	Recipient string
	Subject   string
	Body      string
	Kind      string
}

// EnqueueEmail adds an email to the outgoing queue in pending state.
func (q *Queries) EnqueueEmail(ctx context.Context, arg EnqueueEmailParams) (model.QueuedEmail, error) {
	var e model.QueuedEmail
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO email_queue (recipient, subject, body, kind) VALUES (?, ?, ?, ?)
		RETURNING id, recipient, subject, body, kind, status, created_at`,
		arg.Recipient, arg.Subject, arg.Body, arg.Kind,
	).Scan(&e.ID, &e.Recipient, &e.Subject, &e.Body, &e.Kind, &e.Status, &e.CreatedAt)
	return e, err
}

// ListPendingEmails returns queued emails awaiting delivery, oldest first.
func (q *Queries) ListPendingEmails(ctx context.Context, limit int64) ([]model.QueuedEmail, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, recipient, subject, body, kind, status, created_at
		FROM email_queue WHERE status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []model.QueuedEmail
	for rows.Next() {
		var e model.QueuedEmail
		if err := rows.Scan(&e.ID, &e.Recipient, &e.Subject, &e.Body, &e.Kind,
			&e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// SetEmailStatus updates a queued email's delivery status.
func (q *Queries) SetEmailStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE email_queue SET status = ? WHERE id = ?`, status, id)
	return err
}

// DeleteSentEmailsBefore removes delivered emails older than the cutoff.
// Returns the number of rows deleted.
func (q *Queries) DeleteSentEmailsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM email_queue WHERE status = 'sent' AND created_at < ?`,
		cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearExpiredResetTokens removes password reset tokens that have expired.
// Returns the number of users affected.
func (q *Queries) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE users SET reset_token = NULL, reset_expires = NULL
		WHERE reset_token IS NOT NULL AND reset_expires < CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
