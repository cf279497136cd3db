package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/openlms/openlms/internal/model"
)

func TestHealth_PublicMinimal(t *testing.T) {
	app := newTestApp(t)

	status, body := app.get("/health")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	var resp map[string]any
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v; want healthy", resp["status"])
	}
	if _, ok := resp["checks"]; ok {
		t.Error("public response should not include check details")
	}
}

func TestHealth_AdminSeesChecks(t *testing.T) {
	app := newTestApp(t)
	app.createUser("admin@example.com", "password123", model.RoleAdmin)
	app.login("admin@example.com", "password123")

	_, body := app.get("/health")

	var resp HealthStatus
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q; want healthy", resp.Status)
	}
	if _, ok := resp.Checks["database"]; !ok {
		t.Error("admin response missing database check")
	}
	if _, ok := resp.Checks["disk"]; !ok {
		t.Error("admin response missing disk check")
	}
}

func TestHealth_Liveness(t *testing.T) {
	app := newTestApp(t)

	status, body := app.get("/health/live")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "alive") {
		t.Errorf("body = %q; want alive", body)
	}
}

func TestHealth_Readiness(t *testing.T) {
	app := newTestApp(t)

	status, body := app.get("/health/ready")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "ready") {
		t.Errorf("body = %q; want ready", body)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q; want %q", tt.bytes, got, tt.want)
		}
	}
}
