package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/openlms/openlms/internal/model"
)

// LogActivityParams holds the fields of an activity log entry.
type LogActivityParams struct {
	UserID    sql.NullInt64
	Action    string
	Details   sql.NullString
	IPAddress sql.NullString
	UserAgent sql.NullString
	Country   sql.NullString
}

// LogActivity appends an entry to the activity log.
func (q *Queries) LogActivity(ctx context.Context, arg LogActivityParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO activity_log (user_id, action, details, ip_address, user_agent, country)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.UserID, arg.Action, arg.Details, arg.IPAddress, arg.UserAgent, arg.Country)
	return err
}

// ListRecentActivity returns the newest activity log entries.
func (q *Queries) ListRecentActivity(ctx context.Context, limit int64) ([]model.Activity, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, ip_address, user_agent, country, created_at
		FROM activity_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Details, &a.IPAddress,
			&a.UserAgent, &a.Country, &a.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// ListActivityByUser returns a user's newest activity log entries.
func (q *Queries) ListActivityByUser(ctx context.Context, userID, limit int64) ([]model.Activity, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, ip_address, user_agent, country, created_at
		FROM activity_log WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Details, &a.IPAddress,
			&a.UserAgent, &a.Country, &a.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// DeleteActivityBefore removes activity log entries older than the cutoff.
// Returns the number of rows deleted.
func (q *Queries) DeleteActivityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM activity_log WHERE created_at < ?`,
		cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
