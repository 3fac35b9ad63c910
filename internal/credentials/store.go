package credentials

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/nacl/secretbox"
)

// Store persists one credential per channel endpoint, durable across
// restarts. An expired credential reads back as absent.
type Store interface {
	// Get returns the stored credential, or "" if none is on file.
	Get() (string, error)
	Set(value string, ttl time.Duration) error
	Clear() error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	scope      TEXT PRIMARY KEY,
	sealed     BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// SQLiteStore keeps credentials sealed at rest in a local sqlite file.
// Sealing uses a random key kept beside the database; the credential has
// to be recoverable in plaintext (it is sent on the wire), so hashing
// is not an option here.
type SQLiteStore struct {
	db    *sql.DB
	scope string
	key   [32]byte
	now   func() time.Time
}

// Open creates or opens the store at path, scoped to the given channel
// endpoint. ":memory:" uses an ephemeral sealing key.
func Open(path, scope string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init credential db: %w", err)
	}

	s := &SQLiteStore{db: db, scope: scope, now: time.Now}
	if err := s.loadKey(path); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) loadKey(dbPath string) error {
	if dbPath == ":memory:" {
		_, err := rand.Read(s.key[:])
		return err
	}

	keyPath := dbPath + ".key"
	data, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		if len(data) != len(s.key) {
			return fmt.Errorf("credential key file %s has wrong size", keyPath)
		}
		copy(s.key[:], data)
		return nil
	case errors.Is(err, os.ErrNotExist):
		if _, err := rand.Read(s.key[:]); err != nil {
			return err
		}
		return os.WriteFile(keyPath, s.key[:], 0o600)
	default:
		return fmt.Errorf("read credential key: %w", err)
	}
}

func (s *SQLiteStore) Get() (string, error) {
	var sealed []byte
	var expiresAt int64
	err := s.db.QueryRow(
		`SELECT sealed, expires_at FROM credentials WHERE scope = ?`, s.scope,
	).Scan(&sealed, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}

	if expiresAt > 0 && s.now().Unix() >= expiresAt {
		_ = s.Clear()
		return "", nil
	}

	value, err := s.unseal(sealed)
	if err != nil {
		// Key rotated or file corrupted; treat as absent.
		_ = s.Clear()
		return "", nil
	}
	return value, nil
}

func (s *SQLiteStore) Set(value string, ttl time.Duration) error {
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}

	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).Unix()
	}

	_, err = s.db.Exec(
		`INSERT INTO credentials (scope, sealed, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(scope) DO UPDATE SET sealed = excluded.sealed, expires_at = excluded.expires_at`,
		s.scope, sealed, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE scope = ?`, s.scope); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) seal(value string) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key), nil
}

func (s *SQLiteStore) unseal(sealed []byte) (string, error) {
	if len(sealed) < 24 {
		return "", errors.New("sealed credential too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return "", errors.New("credential unseal failed")
	}
	return string(plain), nil
}
