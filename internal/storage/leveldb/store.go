// Package leveldb provides a LevelDB-backed ledger store.
package leveldb

import (
	"errors"
	"fmt"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Options configures the LevelDB store.
type Options struct {
	DataDirectoryPath string `yaml:"DataDirectoryPath"`
	ReadOnly          bool   `yaml:"ReadOnly"`
}

// Store is an interfaces.Store over LevelDB.
type Store struct {
	db   *leveldb.DB
	path string
}

// New opens the database found at cfg.DataDirectoryPath.
func New(cfg Options) (*Store, error) {
	var opts = new(opt.Options)
	if cfg.ReadOnly {
		opts.ReadOnly = true
		opts.ErrorIfMissing = true
	}
	opts.Filter = filter.NewBloomFilter(10)

	db, err := leveldb.OpenFile(cfg.DataDirectoryPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB instance: %w", err)
	}
	return &Store{db: db, path: cfg.DataDirectoryPath}, nil
}

// Get implements the Store interface.
func (s *Store) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		err = interfaces.ErrKeyNotFound
	}
	return value, err
}

// PutChangeSet implements the Store interface.
func (s *Store) PutChangeSet(puts map[string][]byte) error {
	tx, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}
	for k, v := range puts {
		if v != nil {
			err = tx.Put([]byte(k), v, nil)
		} else {
			err = tx.Delete([]byte(k), nil)
		}
		if err != nil {
			tx.Discard()
			return err
		}
	}
	return tx.Commit()
}

// Seek implements the Store interface.
func (s *Store) Seek(prefix []byte, f func(k, v []byte) bool) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !f(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// Close implements the Store interface.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ interfaces.Store = (*Store)(nil)
