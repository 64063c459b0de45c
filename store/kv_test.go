package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenKVCreatesMissingParentDirectory(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	dbPath := filepath.Join(baseDir, "nested", "relayer.db")

	_, err := os.Stat(filepath.Dir(dbPath))
	require.True(t, os.IsNotExist(err))

	kv, err := openKV(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { kv.close() })

	info, err := os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
