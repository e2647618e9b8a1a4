package interfaces

import "errors"

// ErrKeyNotFound is returned by Store implementations when a key is absent.
var ErrKeyNotFound = errors.New("key not found")

// Store is the KV backend holding ledger and balance state. It's not used
// directly by the ledger, every invocation works on a cached overlay that is
// flushed with a single PutChangeSet.
type Store interface {
	Get(key []byte) ([]byte, error)
	// PutChangeSet applies all puts atomically. A nil value deletes the key.
	PutChangeSet(puts map[string][]byte) error
	// Seek calls f for every key starting with prefix in ascending key order
	// until f returns false. Key and value are only valid until f returns.
	Seek(prefix []byte, f func(k, v []byte) bool) error
	Close() error
}
