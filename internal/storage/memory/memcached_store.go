package memory

import (
	"bytes"
	"sort"
	"sync"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
)

// MemCachedStore is an overlay on top of another Store that keeps all the
// changes in memory until Persist flushes them to the lower layer in one
// change set. Dropping a MemCachedStore without persisting it discards every
// change made through it. Overlays can be stacked.
type MemCachedStore struct {
	mu sync.RWMutex // protects mem
	// Pending changes, nil value marks a deleted key.
	mem   map[string][]byte
	lower interfaces.Store // the store changes are flushed to
}

// NewMemCachedStore creates an overlay over lower.
func NewMemCachedStore(lower interfaces.Store) *MemCachedStore {
	return &MemCachedStore{
		mem:   make(map[string][]byte),
		lower: lower,
	}
}

// Get implements the Store interface.
func (s *MemCachedStore) Get(key []byte) ([]byte, error) {
	// Check the pending changes first, fall back to the lower layer
	s.mu.RLock()
	val, ok := s.mem[string(key)]
	s.mu.RUnlock()
	if ok {
		if val == nil {
			return nil, interfaces.ErrKeyNotFound
		}
		return bytes.Clone(val), nil
	}
	return s.lower.Get(key)
}

// Put stores a value in the overlay.
func (s *MemCachedStore) Put(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	s.mu.Lock()
	s.mem[string(key)] = bytes.Clone(value)
	s.mu.Unlock()
}

// Delete marks a key as deleted in the overlay.
func (s *MemCachedStore) Delete(key []byte) {
	s.mu.Lock()
	s.mem[string(key)] = nil
	s.mu.Unlock()
}

// PutChangeSet implements the Store interface, it merges puts into the
// overlay. This is what a nested overlay's Persist ends up calling.
func (s *MemCachedStore) PutChangeSet(puts map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range puts {
		if v == nil {
			s.mem[k] = nil
			continue
		}
		s.mem[k] = bytes.Clone(v)
	}
	return nil
}

// Seek implements the Store interface. Pending changes shadow the lower
// layer: overridden keys report the pending value and deleted keys are
// skipped.
func (s *MemCachedStore) Seek(prefix []byte, f func(k, v []byte) bool) error {
	merged := make(map[string][]byte)
	err := s.lower.Seek(prefix, func(k, v []byte) bool {
		merged[string(k)] = bytes.Clone(v)
		return true
	})
	if err != nil {
		return err
	}

	s.mu.RLock()
	for k, v := range s.mem {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = bytes.Clone(v)
	}
	s.mu.RUnlock()

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !f([]byte(k), merged[k]) {
			break
		}
	}
	return nil
}

// Len returns the number of pending changes.
func (s *MemCachedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mem)
}

// Persist flushes all pending changes into the lower store and returns the
// number of keys flushed. On error the overlay keeps its changes.
func (s *MemCachedStore) Persist() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.mem)
	if n == 0 {
		return 0, nil // nothing to flush
	}
	// Flush everything as one change set
	// If it fails, keep the changes and return the error
	if err := s.lower.PutChangeSet(s.mem); err != nil {
		return 0, err
	}
	s.mem = make(map[string][]byte) // start over with an empty overlay
	return n, nil
}

// Close drops pending changes. The lower store stays open.
func (s *MemCachedStore) Close() error {
	s.mu.Lock()
	s.mem = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

var _ interfaces.Store = (*MemCachedStore)(nil)
