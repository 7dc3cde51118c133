package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tokenart/internal/domain"

	_ "modernc.org/sqlite"
)

const (
	defaultSQLiteFile = "ledger.db"
	busyTimeoutMs     = 5000
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS ledger_entries (
	space      TEXT    NOT NULL,
	target     BLOB    NOT NULL,
	seq        INTEGER NOT NULL DEFAULT 0,
	value      BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (space, target, seq)
)`

// SQLiteStore persists ledger entries in a single SQLite database file. All
// transactions go through one connection and start with BEGIN IMMEDIATE, so
// updates are serialized.
type SQLiteStore struct {
	db   *sql.DB
	file string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultSQLiteFile
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		filepath.Clean(absPath), busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ensure schema: %w", err)
	}

	return &SQLiteStore{db: db, file: absPath, now: time.Now}, nil
}

// File returns the absolute database path.
func (s *SQLiteStore) File() string { return s.file }

// View runs fn inside a transaction that is always rolled back.
func (s *SQLiteStore) View(ctx context.Context, fn func(domain.Reader) error) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(&sqliteTxn{tx: tx})
}

// Update runs fn inside a transaction committed only when fn succeeds.
func (s *SQLiteStore) Update(ctx context.Context, fn func(domain.Txn) error) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(&sqliteTxn{tx: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) begin(ctx context.Context) (*sql.Tx, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: begin: %w", err)
	}
	return tx, nil
}

type sqliteTxn struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *sqliteTxn) Get(ctx context.Context, key domain.Key) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT value FROM ledger_entries WHERE space = ? AND target = ? AND seq = ?`,
		string(key.Space), targetBytes(key.Target), int64(key.Seq),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: get %s: %w", key.Space, err)
	}
	return value, true, nil
}

func (t *sqliteTxn) Set(ctx context.Context, key domain.Key, value []byte) error {
	if t.now == nil {
		return errors.New("storage: write in read-only view")
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_entries (space, target, seq, value, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (space, target, seq) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(key.Space), targetBytes(key.Target), int64(key.Seq), value, t.now().UnixNano())
	if err != nil {
		return fmt.Errorf("storage: set %s: %w", key.Space, err)
	}
	return nil
}

func (t *sqliteTxn) SetIfAbsent(ctx context.Context, key domain.Key, value []byte) (bool, error) {
	if t.now == nil {
		return false, errors.New("storage: write in read-only view")
	}
	res, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_entries (space, target, seq, value, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (space, target, seq) DO NOTHING`,
		string(key.Space), targetBytes(key.Target), int64(key.Seq), value, t.now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("storage: set-if-absent %s: %w", key.Space, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: rows affected: %w", err)
	}
	return n == 1, nil
}

// targetBytes never returns nil so that empty identifiers satisfy NOT NULL.
func targetBytes(t domain.TargetID) []byte {
	if t == nil {
		return []byte{}
	}
	return []byte(t)
}

var _ domain.Store = (*SQLiteStore)(nil)
