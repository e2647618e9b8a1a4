package sqlite

import (
	"path/filepath"
	"testing"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) interfaces.Store {
		s, err := Open(Options{FilePath: filepath.Join(t.TempDir(), "ledger.db")})
		require.NoError(t, err)
		return s
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Options{FilePath: "  "})
	require.Error(t, err)
}
