package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/store"
)

func testScheduler(t *testing.T) (*Scheduler, *sql.DB) {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	q := store.New(db)
	emails := service.NewEmailService(q, "http://localhost:8080")
	limiter := service.NewLoginLimiter(5, 15*time.Minute)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	return New(db, emails, service.LogSender{}, limiter, logger), db
}

func TestDeliverEmails(t *testing.T) {
	s, db := testScheduler(t)
	ctx := context.Background()
	q := store.New(db)

	_, err := q.EnqueueEmail(ctx, store.EnqueueEmailParams{
		Recipient: "a@example.com",
		Subject:   "Hello",
		Body:      "Hi",
		Kind:      service.EmailKindVerification,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := s.DeliverEmails(); err != nil {
		t.Fatalf("DeliverEmails: %v", err)
	}

	pending, err := q.ListPendingEmails(ctx, 10)
	if err != nil {
		t.Fatalf("listing pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending emails after delivery: %d", len(pending))
	}
}

func TestCleanup_AppliesRetention(t *testing.T) {
	s, db := testScheduler(t)
	ctx := context.Background()
	q := store.New(db)

	// Recent entry survives, ancient one does not.
	if err := q.LogActivity(ctx, store.LogActivityParams{Action: model.ActionLoginSuccess}); err != nil {
		t.Fatalf("log activity: %v", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO activity_log (action, created_at) VALUES (?, ?)`,
		model.ActionLoginFailed, "2020-01-01 00:00:00")
	if err != nil {
		t.Fatalf("insert old activity: %v", err)
	}

	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	entries, err := q.ListRecentActivity(ctx, 10)
	if err != nil {
		t.Fatalf("listing activity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries after cleanup = %d, want 1", len(entries))
	}
	if entries[0].Action != model.ActionLoginSuccess {
		t.Errorf("surviving action = %q", entries[0].Action)
	}
}

func TestCleanup_ClearsExpiredResetTokens(t *testing.T) {
	s, db := testScheduler(t)
	ctx := context.Background()
	q := store.New(db)

	user, err := q.CreateUser(ctx, store.CreateUserParams{
		Email:        "reset@example.com",
		PasswordHash: "x",
		FirstName:    "R",
		LastName:     "T",
		Role:         model.RoleStudent,
		IsVerified:   true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	expired := sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true}
	if err := q.SetResetToken(ctx, user.ID, "tok", expired); err != nil {
		t.Fatalf("set reset token: %v", err)
	}

	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	got, err := q.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ResetToken.Valid {
		t.Error("expected expired reset token to be cleared")
	}
}

func TestStartStop(t *testing.T) {
	s, _ := testScheduler(t)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
