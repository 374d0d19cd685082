package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/chatsplit/internal/errors"
)

// InputExt is the required extension of archive files.
const InputExt = ".json"

// ValidateInputPath checks that path names an existing, regular .json file
// that is not a symlink, and returns its absolute form.
func ValidateInputPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.NewInvalidRequest("input path is required")
	}

	cleaned := filepath.Clean(path)
	if !strings.EqualFold(filepath.Ext(cleaned), InputExt) {
		return "", errors.NewInvalidRequest("input path must have .json extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid input path: %v", err))
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.NewIO("stat input", err)
	}
	// Reject symlinks early; O_NOFOLLOW at open time would catch this too,
	// but this gives a clearer error.
	if info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("input path must not be a symlink")
	}
	if info.IsDir() {
		return "", errors.NewInvalidRequest("input path is a directory")
	}

	return absPath, nil
}

// ValidateOutputDir checks that dir is either absent or an existing
// directory that is not a symlink, and returns its absolute form.
// It never creates the directory.
func ValidateOutputDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.NewInvalidRequest("output directory is required")
	}

	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid output directory: %v", err))
	}

	info, err := os.Lstat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return absDir, nil
		}
		return "", errors.NewIO("stat output directory", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("output directory must not be a symlink")
	}
	if !info.IsDir() {
		return "", errors.NewInvalidRequest("output path exists and is not a directory")
	}

	return absDir, nil
}

// DefaultPrefix derives a shard file prefix from the input file name.
func DefaultPrefix(inputPath string) string {
	base := filepath.Base(inputPath)
	return SanitizeForFilename(strings.TrimSuffix(base, filepath.Ext(base)))
}

// SanitizeForFilename sanitizes a string for safe use in a filename.
// Removes/replaces characters that could be used for path traversal or injection.
func SanitizeForFilename(s string) string {
	// Replace path separators with dashes
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")

	// Replace ".." sequences (could be embedded)
	s = strings.ReplaceAll(s, "..", "-")

	// Remove null bytes and other control characters
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	// Collapse multiple dashes
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	s = strings.Trim(s, "-")

	if s == "" {
		s = "conversations"
	}

	return s
}
