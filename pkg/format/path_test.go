package format

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scan.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), FileUserReadWrite))

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{name: "directory", path: dir, expected: true},
		{name: "regular file", path: file, expected: false},
		{name: "missing path", path: filepath.Join(dir, "missing"), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDirectory(tt.path))
		})
	}
}

func TestHasExtension(t *testing.T) {
	tests := []struct {
		path     string
		exts     []string
		expected bool
	}{
		{path: "scan.json", exts: []string{".json"}, expected: true},
		{path: "out/SCAN.YML", exts: []string{".yaml", ".yml"}, expected: true},
		{path: "scan.json.bak", exts: []string{".json"}, expected: false},
		{path: "scan", exts: []string{".json"}, expected: false},
		{path: "scan.json", exts: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasExtension(tt.path, tt.exts...))
		})
	}
}
