package memory

import (
	"bytes"
	"sort"
	"sync"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.Store.
// It's used for development networks and tests; state is lost on restart.
type MemoryLedgerStore struct {
	mu  sync.RWMutex      // mutex to protect mem from concurrent access
	mem map[string][]byte // map that holds all the key/value pairs
}

// NewMemoryLedgerStore creates and returns a new empty MemoryLedgerStore instance
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		mem: make(map[string][]byte), // initialize the map so we can write to it right away
	}
}

// Get implements the Store interface.
func (m *MemoryLedgerStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock() // lock for reading, concurrent readers are allowed
	defer m.mu.RUnlock()

	// Return a copy so the caller can't modify what is stored
	if val, ok := m.mem[string(key)]; ok {
		return bytes.Clone(val), nil
	}
	return nil, interfaces.ErrKeyNotFound
}

// PutChangeSet implements the Store interface. Never returns an error.
func (m *MemoryLedgerStore) PutChangeSet(puts map[string][]byte) error {
	m.mu.Lock() // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock()

	// The whole change set is applied under one lock
	for k, v := range puts {
		if v == nil {
			delete(m.mem, k) // nil value means the key was deleted
			continue
		}
		m.mem[k] = bytes.Clone(v)
	}
	return nil
}

// Seek implements the Store interface. Matching pairs are copied before f is
// called, so f may use the store.
func (m *MemoryLedgerStore) Seek(prefix []byte, f func(k, v []byte) bool) error {
	m.mu.RLock()
	pairs := collect(m.mem, prefix)
	m.mu.RUnlock()

	for _, kv := range pairs {
		if !f(kv.key, kv.value) {
			break
		}
	}
	return nil
}

// Close implements the Store interface, it drops all the data.
func (m *MemoryLedgerStore) Close() error {
	m.mu.Lock()
	m.mem = make(map[string][]byte)
	m.mu.Unlock()
	return nil
}

type kv struct {
	key   []byte
	value []byte
}

// collect returns sorted copies of the pairs with the given prefix, skipping
// deleted (nil) entries.
func collect(m map[string][]byte, prefix []byte) []kv {
	res := make([]kv, 0)
	for k, v := range m {
		if v == nil || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		res = append(res, kv{key: []byte(k), value: bytes.Clone(v)})
	}
	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].key, res[j].key) < 0
	})
	return res
}

// Compile-time check: ensure MemoryLedgerStore implements Store interface
var _ interfaces.Store = (*MemoryLedgerStore)(nil)
