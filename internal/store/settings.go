package store

import (
	"context"

	"github.com/openlms/openlms/internal/model"
)

// GetSetting fetches a system setting by key.
func (q *Queries) GetSetting(ctx context.Context, key string) (model.Setting, error) {
	var s model.Setting
	err := q.db.QueryRowContext(ctx, `
		SELECT key, value, updated_at FROM system_settings WHERE key = ?`,
		key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

// SetSetting inserts or updates a system setting.
func (q *Queries) SetSetting(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO system_settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}

// ListSettings returns all system settings ordered by key.
func (q *Queries) ListSettings(ctx context.Context) ([]model.Setting, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT key, value, updated_at FROM system_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
