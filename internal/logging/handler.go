// Package logging provides a custom slog handler that mirrors warnings and
// errors into the activity log for auditing.
package logging

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
)

// ActivityLogHandler is a slog.Handler that wraps another handler and also
// writes WARN and ERROR level logs to the activity log.
type ActivityLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level // Minimum level to mirror (default: WARN)
}

// NewActivityLogHandler creates a handler that wraps inner. Logs at WARN level
// and above are written to both the wrapped handler and the activity log.
func NewActivityLogHandler(inner slog.Handler, db *sql.DB) *ActivityLogHandler {
	return &ActivityLogHandler{
		inner:   inner,
		queries: store.New(db),
		level:   slog.LevelWarn,
	}
}

// Enabled implements slog.Handler.
func (h *ActivityLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ActivityLogHandler) Handle(ctx context.Context, r slog.Record) error {
	// Always forward to the inner handler first
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.writeToActivityLog(r)
	}

	return nil
}

// WithAttrs implements slog.Handler.
func (h *ActivityLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ActivityLogHandler{
		inner:   h.inner.WithAttrs(attrs),
		queries: h.queries,
		level:   h.level,
	}
}

// WithGroup implements slog.Handler.
func (h *ActivityLogHandler) WithGroup(name string) slog.Handler {
	return &ActivityLogHandler{
		inner:   h.inner.WithGroup(name),
		queries: h.queries,
		level:   h.level,
	}
}

// writeToActivityLog records the log entry in the activity log.
// A background context is used so the entry is written even if the request
// context has been cancelled.
func (h *ActivityLogHandler) writeToActivityLog(r slog.Record) {
	action := model.ActionSystemWarning
	if r.Level >= slog.LevelError {
		action = model.ActionSystemError
	}

	details := r.Message
	if meta := formatAttrs(r); meta != "" {
		details += " " + meta
	}

	_ = h.queries.LogActivity(context.Background(), store.LogActivityParams{
		Action:  action,
		Details: sql.NullString{String: details, Valid: true},
	})
}

// formatAttrs collects the record attributes into a compact JSON object.
func formatAttrs(r slog.Record) string {
	if r.NumAttrs() == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("{")
	first := true

	r.Attrs(func(a slog.Attr) bool {
		if !first {
			sb.WriteString(",")
		}
		first = false
		sb.WriteString(`"`)
		sb.WriteString(escapeJSON(a.Key))
		sb.WriteString(`":"`)
		sb.WriteString(escapeJSON(a.Value.String()))
		sb.WriteString(`"`)
		return true
	})

	sb.WriteString("}")
	return sb.String()
}

// escapeJSON escapes special characters in a string for JSON.
func escapeJSON(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
