//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/chatsplit/internal/errors"
)

// createShardTemp creates a shard temp file. The name must be new (O_EXCL) and
// must not be a symlink, so a planted link in the output directory is refused
// rather than written through.
func createShardTemp(path string) (*os.File, error) {
	flags := syscall.O_CREAT | syscall.O_WRONLY | syscall.O_EXCL | syscall.O_NOFOLLOW | syscall.O_CLOEXEC
	fd, err := syscall.Open(path, flags, 0644)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("shard path is a symlink: " + path)
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openArchive opens an input archive or a recorded shard for reading.
// A symlinked final component is rejected.
func openArchive(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	switch {
	case err == nil:
		return os.NewFile(uintptr(fd), path), nil
	case stderrors.Is(err, syscall.ELOOP):
		return nil, errors.NewInvalidRequest("refusing to read symlink: " + path)
	case stderrors.Is(err, syscall.ENOENT):
		return nil, errors.NewFileNotFound(path)
	default:
		return nil, err
	}
}
