package format

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// IsDirectory reports whether path is a directory. Paths that cannot be stat'ed count as directories
// so callers skip them.
func IsDirectory(path string) bool {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return true
	}

	return fileInfo.IsDir()
}

// HasExtension reports whether path ends in one of exts, ignoring case. exts include the dot.
func HasExtension(path string, exts ...string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}
