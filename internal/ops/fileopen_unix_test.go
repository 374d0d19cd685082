//go:build !windows

package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/chatsplit/internal/errors"
)

func TestOpenArchive(t *testing.T) {
	tmpDir := t.TempDir()
	target := writeRaw(t, tmpDir, "real.json", "[]")
	link := filepath.Join(tmpDir, "link.json")
	require.NoError(t, os.Symlink(target, link))

	f, err := openArchive(target)
	require.NoError(t, err)
	f.Close()

	_, err = openArchive(link)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "symlink: %v", err)

	_, err = openArchive(filepath.Join(tmpDir, "missing.json"))
	require.True(t, errors.Is(err, errors.ErrFileNotFound), "missing: %v", err)
}

func TestCreateShardTemp(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "part.json.tmp")

	f, err := createShardTemp(path)
	require.NoError(t, err)
	f.Close()

	// An existing name is never reused
	_, err = createShardTemp(path)
	require.Error(t, err)

	link := filepath.Join(tmpDir, "planted.tmp")
	require.NoError(t, os.Symlink(filepath.Join(tmpDir, "elsewhere"), link))
	_, err = createShardTemp(link)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(tmpDir, "elsewhere"))
	require.True(t, os.IsNotExist(statErr), "symlink target must not be created")
}
