// Package boltdb provides a BoltDB-backed ledger store.
package boltdb

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.etcd.io/bbolt"
)

// Options configures the BoltDB store.
type Options struct {
	FilePath string `yaml:"FilePath"`
}

// Bucket is the bucket holding all the ledger state.
var Bucket = []byte("DB")

// Store is an interfaces.Store over a single BoltDB bucket.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the database file and its bucket.
func New(cfg Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("could not create dir for BoltDB: %w", err)
	}
	db, err := bbolt.Open(cfg.FilePath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(Bucket); err != nil {
			return fmt.Errorf("could not create root bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get implements the Store interface.
func (s *Store) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		// Bolt values are only valid for the life of the transaction.
		val = bytes.Clone(tx.Bucket(Bucket).Get(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, interfaces.ErrKeyNotFound
	}
	return val, nil
}

// PutChangeSet implements the Store interface, all puts share one bolt
// transaction.
func (s *Store) PutChangeSet(puts map[string][]byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(Bucket)
		for k, v := range puts {
			var err error
			if v == nil {
				err = b.Delete([]byte(k))
			} else {
				err = b.Put([]byte(k), v)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Seek implements the Store interface.
func (s *Store) Seek(prefix []byte, f func(k, v []byte) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(Bucket).Cursor()
		rng := util.BytesPrefix(prefix)
		for k, v := c.Seek(rng.Start); k != nil && (rng.Limit == nil || bytes.Compare(k, rng.Limit) < 0); k, v = c.Next() {
			if !f(k, v) {
				break
			}
		}
		return nil
	})
}

// Close releases all db resources.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ interfaces.Store = (*Store)(nil)
