// Package storagetest holds the behaviour every interfaces.Store backend is
// expected to share.
package storagetest

import (
	"testing"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the common Store checks against stores produced by newStore.
// newStore must return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) interfaces.Store) {
	t.Run("GetPut", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		require.NoError(t, s.PutChangeSet(map[string][]byte{"sparse": []byte("rocks")}))
		val, err := s.Get([]byte("sparse"))
		require.NoError(t, err)
		assert.Equal(t, []byte("rocks"), val)
	})

	t.Run("KeyNotFound", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		_, err := s.Get([]byte("sparse"))
		require.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		require.NoError(t, s.PutChangeSet(map[string][]byte{"a": []byte("1"), "b": []byte("2")}))
		require.NoError(t, s.PutChangeSet(map[string][]byte{"a": nil, "b": []byte("3")}))

		_, err := s.Get([]byte("a"))
		require.ErrorIs(t, err, interfaces.ErrKeyNotFound)
		val, err := s.Get([]byte("b"))
		require.NoError(t, err)
		assert.Equal(t, []byte("3"), val)
	})

	t.Run("SeekPrefixOrdered", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		require.NoError(t, s.PutChangeSet(map[string][]byte{
			"\x02c": []byte("3"),
			"\x02a": []byte("1"),
			"\x02b": []byte("2"),
			"\x03a": []byte("other"),
			"\x01z": []byte("other"),
		}))

		var keys, vals []string
		require.NoError(t, s.Seek([]byte{0x02}, func(k, v []byte) bool {
			keys = append(keys, string(k))
			vals = append(vals, string(v))
			return true
		}))
		assert.Equal(t, []string{"\x02a", "\x02b", "\x02c"}, keys)
		assert.Equal(t, []string{"1", "2", "3"}, vals)
	})

	t.Run("SeekStop", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		require.NoError(t, s.PutChangeSet(map[string][]byte{
			"\x02a": []byte("1"),
			"\x02b": []byte("2"),
		}))
		var n int
		require.NoError(t, s.Seek([]byte{0x02}, func(k, v []byte) bool {
			n++
			return false
		}))
		assert.Equal(t, 1, n)
	})
}
