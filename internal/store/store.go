package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// historyLimit caps the decision history; older events are pruned on insert.
const historyLimit = 500

// EncryptedStore implements domain.RuleStore on a SQLCipher encrypted SQLite
// database. The agent and the command-line surface may open the same store
// from different processes; SQLite's file locking arbitrates access.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// Open reads or creates the encryption key at keyPath and opens the store at
// dbPath with it.
func Open(dbPath, keyPath string) (*EncryptedStore, error) {
	key, err := EnsureKey(NewFileKeyProvider(keyPath))
	if err != nil {
		return nil, fmt.Errorf("store key: %w", err)
	}
	return OpenEncryptedStore(dbPath, key)
}

// OpenEncryptedStore opens (or creates) the store at dbPath, keyed with the
// SQLCipher passphrase.
func OpenEncryptedStore(dbPath string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096",
		dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ignore_rules (
		section TEXT NOT NULL,
		caller_type TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (section, caller_type, name)
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		at INTEGER NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// IgnoreRules returns the stored ignore rules.
func (s *EncryptedStore) IgnoreRules() ([]domain.IgnoreRule, error) {
	rows, err := s.db.Query(`SELECT section, caller_type, name FROM ignore_rules ORDER BY section, caller_type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.IgnoreRule
	for rows.Next() {
		var section, callerType, name string
		if err := rows.Scan(&section, &callerType, &name); err != nil {
			return nil, err
		}
		rules = append(rules, domain.IgnoreRule{
			Section:    domain.Section(section),
			CallerType: domain.CallerType(callerType),
			Name:       name,
		})
	}
	return rules, rows.Err()
}

// ReplaceIgnoreRules swaps the whole ignore list in one transaction. Rules
// are never edited in place.
func (s *EncryptedStore) ReplaceIgnoreRules(rules []domain.IgnoreRule) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ignore_rules`); err != nil {
		return err
	}
	for _, r := range rules {
		_, err := tx.Exec(`INSERT OR REPLACE INTO ignore_rules (section, caller_type, name) VALUES (?, ?, ?)`,
			string(r.Section), string(r.CallerType), r.Name)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordEvent appends one decision event and prunes the history to its cap.
func (s *EncryptedStore) RecordEvent(kind domain.EventKind, detail string) error {
	_, err := s.db.Exec(`INSERT INTO events (id, at, kind, detail) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC().UnixMilli(), string(kind), detail)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`DELETE FROM events WHERE id NOT IN (
		SELECT id FROM events ORDER BY at DESC, rowid DESC LIMIT ?)`, historyLimit)
	return err
}

// RecentEvents returns up to n events, newest first.
func (s *EncryptedStore) RecentEvents(n int) ([]domain.DecisionEvent, error) {
	if n <= 0 || n > historyLimit {
		n = historyLimit
	}
	rows, err := s.db.Query(`SELECT id, at, kind, detail FROM events ORDER BY at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.DecisionEvent
	for rows.Next() {
		var (
			ev domain.DecisionEvent
			at int64
		)
		if err := rows.Scan(&ev.ID, &at, &ev.Kind, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.UnixMilli(at).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database handle.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ domain.RuleStore = (*EncryptedStore)(nil)
