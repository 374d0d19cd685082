package ops

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/hpungsan/chatsplit/internal/conversation"
	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/shard"
)

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// writeShard serializes convs as one JSON array to dir/name.
// The file is written to a temp name and renamed into place, so the shard
// is either complete or absent.
func writeShard(dir, name string, convs []*conversation.FlatConversation, indent bool) (shard.File, error) {
	path := filepath.Join(dir, name)

	// Check if destination is a symlink
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return shard.File{}, errors.NewInvalidRequest(fmt.Sprintf("shard path is a symlink: %s", path))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return shard.File{}, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := createShardTemp(tempPath)
	if err != nil {
		return shard.File{}, errors.NewIO("create shard", err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	buf := bufio.NewWriter(file)
	cw := &countingWriter{w: buf}
	enc := json.NewEncoder(cw)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(convs); err != nil {
		return shard.File{}, errors.NewIO("encode shard", err)
	}
	if err := buf.Flush(); err != nil {
		return shard.File{}, errors.NewIO("write shard", err)
	}
	if err := file.Sync(); err != nil {
		return shard.File{}, errors.NewIO("sync shard", err)
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return shard.File{}, errors.NewIO("close shard", err)
	}
	file = nil

	// Shard names are deterministic, so reruns must replace earlier output.
	// Windows refuses to rename over an existing file.
	if runtime.GOOS == "windows" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return shard.File{}, errors.NewIO("replace shard", err)
		}
	}
	if err := os.Rename(tempPath, path); err != nil {
		return shard.File{}, errors.NewIO("finalize shard", err)
	}
	success = true

	messages := 0
	for _, c := range convs {
		messages += c.Len()
	}

	return shard.File{
		Path:          path,
		Conversations: len(convs),
		Messages:      messages,
		Bytes:         cw.n,
	}, nil
}

// humanBytes renders a byte count for logs and pages.
func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
