//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/chatsplit/internal/errors"
)

// createShardTemp creates a shard temp file. Windows has no O_NOFOLLOW;
// writeShard has already refused a symlinked destination.
func createShardTemp(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
}

// openArchive opens an input archive or a recorded shard for reading.
// ValidateInputPath covers symlinked inputs here.
func openArchive(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
