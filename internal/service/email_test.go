package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlms/openlms/internal/model"
)

type failingSender struct{ failFor string }

func (s failingSender) Send(_ context.Context, email model.QueuedEmail) error {
	if email.Recipient == s.failFor {
		return errors.New("smtp unavailable")
	}
	return nil
}

func TestDeliverPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.emails.SendVerification(ctx, "ok@example.com", "tok-1"))
	require.NoError(t, env.emails.SendPasswordReset(ctx, "broken@example.com", "tok-2"))

	handled, err := env.emails.DeliverPending(ctx, failingSender{failFor: "broken@example.com"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, handled)

	// Nothing pending anymore; one sent, one failed.
	pending, err := env.q.ListPendingEmails(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	handled, err = env.emails.DeliverPending(ctx, LogSender{}, 10)
	require.NoError(t, err)
	assert.Zero(t, handled)
}

func TestEmailBodiesCarryLinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.emails.SendVerification(ctx, "a@example.com", "verify-tok"))
	require.NoError(t, env.emails.SendPasswordReset(ctx, "a@example.com", "reset-tok"))
	require.NoError(t, env.emails.SendEnrollmentConfirmation(ctx, "a@example.com", "Go 101", "go-101"))

	pending, err := env.q.ListPendingEmails(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Contains(t, pending[0].Body, "http://localhost:8080/verify-email?token=verify-tok")
	assert.Contains(t, pending[1].Body, "http://localhost:8080/reset-password?token=reset-tok")
	assert.Contains(t, pending[2].Body, "http://localhost:8080/courses/go-101")
}
