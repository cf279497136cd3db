package geoip

import "testing"

func TestDisabledLookup(t *testing.T) {
	g, err := NewLookup("")
	if err != nil {
		t.Fatalf("NewLookup: %v", err)
	}
	defer g.Close()

	if g.IsEnabled() {
		t.Error("lookup with no database should be disabled")
	}

	// Private and loopback addresses resolve without a database.
	if got := g.Country("192.168.1.10"); got != "LOCAL" {
		t.Errorf("Country(192.168.1.10) = %q, want LOCAL", got)
	}
	if got := g.Country("127.0.0.1"); got != "LOCAL" {
		t.Errorf("Country(127.0.0.1) = %q, want LOCAL", got)
	}

	// Public addresses need the database.
	if got := g.Country("8.8.8.8"); got != "" {
		t.Errorf("Country(8.8.8.8) = %q, want empty", got)
	}

	// Garbage input is not an error.
	if got := g.Country("not-an-ip"); got != "" {
		t.Errorf("Country(not-an-ip) = %q, want empty", got)
	}
}

func TestMissingDatabase(t *testing.T) {
	if _, err := NewLookup("/nonexistent/GeoLite2-Country.mmdb"); err == nil {
		t.Error("expected error for missing database file")
	}
}
