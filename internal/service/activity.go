package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mileusna/useragent"

	"github.com/openlms/openlms/internal/geoip"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
	"github.com/openlms/openlms/internal/util"
)

// ActivityService writes the audit trail. Entries carry the client IP, a
// normalized user agent, and the country resolved via GeoIP.
type ActivityService struct {
	q   *store.Queries
	geo *geoip.Lookup
}

// NewActivityService creates the activity service.
func NewActivityService(q *store.Queries, geo *geoip.Lookup) *ActivityService {
	return &ActivityService{q: q, geo: geo}
}

// RequestMeta carries per-request client details into activity entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Record appends an activity entry. Logging failures are reported to slog
// but never fail the calling operation.
func (s *ActivityService) Record(ctx context.Context, userID sql.NullInt64, action, details string, meta RequestMeta) {
	entry := store.LogActivityParams{
		UserID:    userID,
		Action:    action,
		Details:   util.NullStringFromValue(details),
		IPAddress: util.NullStringFromValue(meta.IP),
		UserAgent: util.NullStringFromValue(normalizeUserAgent(meta.UserAgent)),
	}
	if s.geo != nil && meta.IP != "" {
		entry.Country = util.NullStringFromValue(s.geo.Country(meta.IP))
	}

	if err := s.q.LogActivity(ctx, entry); err != nil {
		slog.Error("recording activity failed", "action", action, "error", err)
	}
}

// RecordForUser is Record with a known user ID.
func (s *ActivityService) RecordForUser(ctx context.Context, userID int64, action, details string, meta RequestMeta) {
	s.Record(ctx, util.NullInt64FromValue(userID), action, details, meta)
}

// RecordAnonymous is Record without a user, for failed logins and the like.
func (s *ActivityService) RecordAnonymous(ctx context.Context, action, details string, meta RequestMeta) {
	s.Record(ctx, sql.NullInt64{}, action, details, meta)
}

// Recent returns the newest activity entries for the admin dashboard.
func (s *ActivityService) Recent(ctx context.Context, limit int64) ([]model.Activity, error) {
	return s.q.ListRecentActivity(ctx, limit)
}

// ForUser returns a user's newest activity entries.
func (s *ActivityService) ForUser(ctx context.Context, userID, limit int64) ([]model.Activity, error) {
	return s.q.ListActivityByUser(ctx, userID, limit)
}

// normalizeUserAgent reduces a raw User-Agent header to "Browser version on
// OS", keeping log entries short and readable. Unrecognized agents are
// stored truncated.
func normalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}

	out := raw
	ua := useragent.Parse(raw)
	if ua.Name != "" {
		out = ua.Name
		if ua.Version != "" {
			out += " " + ua.Version
		}
		if ua.OS != "" {
			out += " on " + ua.OS
		}
		if ua.Bot {
			out += " (bot)"
		}
	}

	if len(out) > 120 {
		out = out[:120]
	}
	return out
}

// Describe renders a short human-readable summary for an activity entry.
func Describe(a model.Activity) string {
	action := strings.ReplaceAll(a.Action, "_", " ")
	if a.Details.Valid && a.Details.String != "" {
		return fmt.Sprintf("%s: %s", action, a.Details.String)
	}
	return action
}
