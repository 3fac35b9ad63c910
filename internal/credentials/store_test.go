package credentials

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, scope string) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:", scope)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t, "wss://relay.example.com")

	if got, err := s.Get(); err != nil || got != "" {
		t.Fatalf("empty store: got %q, err %v", got, err)
	}

	if err := s.Set("1234", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "1234" {
		t.Fatalf("got %q, want 1234", got)
	}

	// Overwrite replaces.
	if err := s.Set("5678", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := s.Get(); got != "5678" {
		t.Fatalf("got %q after overwrite, want 5678", got)
	}
}

func TestExpiredCredentialReadsBackAbsent(t *testing.T) {
	s := openTestStore(t, "wss://relay.example.com")

	base := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return base }

	if err := s.Set("1234", 30*24*time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	s.now = func() time.Time { return base.Add(29 * 24 * time.Hour) }
	if got, _ := s.Get(); got != "1234" {
		t.Fatalf("credential vanished before expiry, got %q", got)
	}

	s.now = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	if got, _ := s.Get(); got != "" {
		t.Fatalf("expired credential still readable: %q", got)
	}

	// The expired row is gone for good, not just filtered.
	s.now = func() time.Time { return base }
	if got, _ := s.Get(); got != "" {
		t.Fatalf("expired credential resurrected: %q", got)
	}
}

func TestClearRemovesCredential(t *testing.T) {
	s := openTestStore(t, "wss://relay.example.com")

	if err := s.Set("1234", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := s.Get(); got != "" {
		t.Fatalf("credential survived clear: %q", got)
	}
}

func TestScopesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.db")

	relay, err := Open(path, "wss://relay.example.com")
	if err != nil {
		t.Fatalf("open relay scope: %v", err)
	}
	defer relay.Close()

	broker, err := Open(path, "tcp://broker.example.com:1883")
	if err != nil {
		t.Fatalf("open broker scope: %v", err)
	}
	defer broker.Close()

	if err := relay.Set("1234", 0); err != nil {
		t.Fatalf("set relay: %v", err)
	}
	if err := broker.Set("abcd", 0); err != nil {
		t.Fatalf("set broker: %v", err)
	}

	if got, _ := relay.Get(); got != "1234" {
		t.Fatalf("relay scope got %q", got)
	}
	if got, _ := broker.Get(); got != "abcd" {
		t.Fatalf("broker scope got %q", got)
	}

	if err := relay.Clear(); err != nil {
		t.Fatalf("clear relay: %v", err)
	}
	if got, _ := broker.Get(); got != "abcd" {
		t.Fatalf("clearing one scope leaked into another, got %q", got)
	}
}

func TestSealSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.db")

	s, err := Open(path, "wss://relay.example.com")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set("1234", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, "wss://relay.example.com")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if got, _ := reopened.Get(); got != "1234" {
		t.Fatalf("credential did not survive reopen, got %q", got)
	}
}

func TestCorruptSealedBlobReadsBackAbsent(t *testing.T) {
	s := openTestStore(t, "wss://relay.example.com")

	if _, err := s.db.Exec(
		`INSERT INTO credentials (scope, sealed, expires_at) VALUES (?, ?, 0)`,
		s.scope, []byte("garbage-not-a-box"), // too short for a nonce anyway
	); err != nil {
		t.Fatalf("plant corrupt row: %v", err)
	}

	if got, err := s.Get(); err != nil || got != "" {
		t.Fatalf("corrupt blob: got %q, err %v", got, err)
	}
}
