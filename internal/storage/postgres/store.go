package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Options configures the Postgres store.
type Options struct {
	DSN string `yaml:"DSN"`
}

const schema = `CREATE TABLE IF NOT EXISTS ledger_state (
	key   BYTEA PRIMARY KEY,
	value BYTEA NOT NULL
)`

// PostgresLedgerStore keeps ledger state as key/value rows in a single table.
type PostgresLedgerStore struct {
	db *sql.DB
}

// Open connects to the database and creates the state table if needed.
func Open(ctx context.Context, cfg Options) (*PostgresLedgerStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := NewPostgresLedgerStore(db)
	if err := p.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Migrate creates the state table.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger_state: %w", err)
	}
	return nil
}

func (p *PostgresLedgerStore) Get(key []byte) ([]byte, error) {
	const query = `SELECT value FROM ledger_state WHERE key = $1`

	var value []byte
	err := p.db.QueryRow(query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *PostgresLedgerStore) put(ctx context.Context, dbTx *sql.Tx, key, value []byte) error {
	const query = `INSERT INTO ledger_state (key, value) VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

	_, err := dbTx.ExecContext(ctx, query, key, value)
	return err
}

func (p *PostgresLedgerStore) delete(ctx context.Context, dbTx *sql.Tx, key []byte) error {
	const query = `DELETE FROM ledger_state WHERE key = $1`

	_, err := dbTx.ExecContext(ctx, query, key)
	return err
}

// PutChangeSet writes every change in one database transaction.
func (p *PostgresLedgerStore) PutChangeSet(puts map[string][]byte) (err error) {
	ctx := context.Background()

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	for k, v := range puts {
		if v == nil {
			err = p.delete(ctx, dbTx, []byte(k))
		} else {
			err = p.put(ctx, dbTx, []byte(k), v)
		}
		if err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (p *PostgresLedgerStore) Seek(prefix []byte, f func(k, v []byte) bool) error {
	rng := util.BytesPrefix(prefix)

	var (
		rows *sql.Rows
		err  error
	)
	if rng.Limit == nil {
		rows, err = p.db.Query(`SELECT key, value FROM ledger_state WHERE key >= $1 ORDER BY key`, rng.Start)
	} else {
		rows, err = p.db.Query(`SELECT key, value FROM ledger_state WHERE key >= $1 AND key < $2 ORDER BY key`, rng.Start, rng.Limit)
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

func (p *PostgresLedgerStore) Close() error {
	return p.db.Close()
}

var _ interfaces.Store = (*PostgresLedgerStore)(nil)
