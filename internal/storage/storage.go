// Package storage selects and opens the KV backend configured for a network.
package storage

import (
	"context"
	"fmt"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/boltdb"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/leveldb"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/redisdb"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/sqlite"
)

// Supported backend types.
const (
	TypeInMemory = "inmemory"
	TypeBoltDB   = "boltdb"
	TypeLevelDB  = "leveldb"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
	TypeRedis    = "redis"
)

// DBConfiguration describes the backend to use. Only the options matching
// Type are read.
type DBConfiguration struct {
	Type            string           `yaml:"Type"`
	BoltDBOptions   boltdb.Options   `yaml:"BoltDBOptions"`
	LevelDBOptions  leveldb.Options  `yaml:"LevelDBOptions"`
	PostgresOptions postgres.Options `yaml:"PostgresOptions"`
	SQLiteOptions   sqlite.Options   `yaml:"SQLiteOptions"`
	RedisDBOptions  redisdb.Options  `yaml:"RedisDBOptions"`
}

// New opens the configured backend. An empty Type means in-memory storage.
func New(ctx context.Context, cfg DBConfiguration) (interfaces.Store, error) {
	switch cfg.Type {
	case "", TypeInMemory:
		return memory.NewMemoryLedgerStore(), nil
	case TypeBoltDB:
		return boltdb.New(cfg.BoltDBOptions)
	case TypeLevelDB:
		return leveldb.New(cfg.LevelDBOptions)
	case TypePostgres:
		return postgres.Open(ctx, cfg.PostgresOptions)
	case TypeSQLite:
		return sqlite.Open(cfg.SQLiteOptions)
	case TypeRedis:
		return redisdb.New(ctx, cfg.RedisDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}
