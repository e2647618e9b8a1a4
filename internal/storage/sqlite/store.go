// Package sqlite provides a SQLite-backed ledger store.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/syndtr/goleveldb/leveldb/util"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Options configures the SQLite store.
type Options struct {
	FilePath string `yaml:"FilePath"`
}

const schema = `CREATE TABLE IF NOT EXISTS ledger_state (
	key   BLOB PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID`

// Store persists ledger state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store and creates the state table.
func Open(cfg Options) (*Store, error) {
	if strings.TrimSpace(cfg.FilePath) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(cfg.FilePath)
	if err := os.MkdirAll(filepath.Dir(cleanPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Get implements the Store interface.
func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.sqlDB.QueryRow(`SELECT value FROM ledger_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// PutChangeSet implements the Store interface.
func (s *Store) PutChangeSet(puts map[string][]byte) error {
	tx, err := s.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for k, v := range puts {
		if v == nil {
			_, err = tx.Exec(`DELETE FROM ledger_state WHERE key = ?`, []byte(k))
		} else {
			_, err = tx.Exec(`INSERT INTO ledger_state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, []byte(k), v)
		}
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Seek implements the Store interface.
func (s *Store) Seek(prefix []byte, f func(k, v []byte) bool) error {
	rng := util.BytesPrefix(prefix)

	var (
		rows *sql.Rows
		err  error
	)
	if rng.Limit == nil {
		rows, err = s.sqlDB.Query(`SELECT key, value FROM ledger_state WHERE key >= ? ORDER BY key`, rng.Start)
	} else {
		rows, err = s.sqlDB.Query(`SELECT key, value FROM ledger_state WHERE key >= ? AND key < ? ORDER BY key`, rng.Start, rng.Limit)
	}
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if !f(k, v) {
			break
		}
	}
	return rows.Err()
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

var _ interfaces.Store = (*Store)(nil)
