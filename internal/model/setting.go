package model

import "time"

// Well-known system setting keys.
const (
	SettingEmailVerificationRequired = "email_verification_required"
	SettingSiteName                  = "site_name"
	SettingAllowRegistration         = "allow_registration"
)

// Setting is a key/value system configuration row.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Email queue statuses.
const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// QueuedEmail is a stubbed outbound notification. Delivery is handled out of
// band; the application only ever appends rows and the cleanup job purges
// sent ones.
type QueuedEmail struct {
	ID        int64     `json:"id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
