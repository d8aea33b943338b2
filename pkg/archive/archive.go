// Package archive unpacks result archives produced by scanner jobs.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"

	"github.com/CompassSecurity/scanview/pkg/format"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"
	"golift.io/xtractr"
)

// maxDepth bounds unpacking of archives nested in archives, e.g. a tar inside a gzip.
const maxDepth = 3

// Entry is a regular file found in an archive.
type Entry struct {
	Name    string
	Content []byte
}

// IsArchive reports whether data looks like any archive format.
func IsArchive(data []byte) bool {
	return filetype.IsArchive(data)
}

func CalculateZipFileSize(data []byte) uint64 {
	zipListing, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}

	var totalSize uint64
	for _, file := range zipListing.File {
		totalSize += file.UncompressedSize64
	}

	return totalSize
}

// ErrSizeLimit is returned when the unpacked files, nested archives
// included, exceed the size limit.
var ErrSizeLimit = errors.New("unpacked size exceeds limit")

// budget tracks the unpacked bytes of one Extract call across all nesting levels.
type budget struct {
	max  int64
	used int64
}

func (b *budget) take(n int64) error {
	b.used += n
	if b.max > 0 && b.used > b.max {
		return fmt.Errorf("%w: %d > %d bytes", ErrSizeLimit, b.used, b.max)
	}
	return nil
}

// Extract returns the regular files of the archive in data. maxSize limits the
// total unpacked size in bytes, 0 disables the limit. Nested archives that
// cannot be unpacked, such as PDFs or executables, are skipped.
func Extract(name string, data []byte, maxSize int64) ([]Entry, error) {
	return extract(name, data, &budget{max: maxSize}, 0)
}

func extract(name string, data []byte, b *budget, depth int) ([]Entry, error) {
	if depth >= maxDepth {
		return nil, fmt.Errorf("archive %s is nested more than %d levels deep", name, maxDepth)
	}

	kind, _ := filetype.Match(data)
	if !filetype.IsArchive(data) {
		return nil, fmt.Errorf("%s is not an archive (%s)", name, kind.MIME.Value)
	}

	var (
		entries []Entry
		err     error
	)
	if kind.Extension == "zip" {
		entries, err = readZip(data, b)
	} else {
		entries, err = extractFile(kind.Extension, data, b)
	}
	if err != nil {
		return nil, fmt.Errorf("failed unpacking %s: %w", name, err)
	}

	flat := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !filetype.IsArchive(entry.Content) {
			flat = append(flat, entry)
			continue
		}

		log.Trace().Str("fileName", entry.Name).Str("parentArchive", name).Int("depth", depth).Msg("Detected nested archive, recursing")
		nested, err := extract(entry.Name, entry.Content, b, depth+1)
		if errors.Is(err, ErrSizeLimit) {
			return nil, err
		}
		if err != nil {
			log.Debug().Err(err).Str("fileName", entry.Name).Str("parentArchive", name).Msg("Skipping entry that cannot be unpacked")
			continue
		}
		flat = append(flat, nested...)
	}

	return flat, nil
}

func readZip(data []byte, b *budget) ([]Entry, error) {
	zipListing, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	// #nosec G115 - sizes above MaxInt64 are clamped and then fail the budget
	size := int64(min(CalculateZipFileSize(data), math.MaxInt64))
	if err := b.take(size); err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, file := range zipListing.File {
		if file.FileInfo().IsDir() {
			continue
		}

		content, err := readZipFile(file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: file.Name, Content: content})
	}

	return entries, nil
}

func readZipFile(zf *zip.File) ([]byte, error) {
	f, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// extractFile unpacks the non zip formats through a temp directory.
func extractFile(extension string, data []byte, b *budget) ([]Entry, error) {
	tmpArchiveFile, err := os.CreateTemp("", "scanview-archive-*."+extension)
	if err != nil {
		return nil, fmt.Errorf("cannot create archive temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmpArchiveFile.Name()) }()
	_ = tmpArchiveFile.Close()

	if err := os.WriteFile(tmpArchiveFile.Name(), data, format.FileUserReadWrite); err != nil {
		return nil, fmt.Errorf("failed writing archive to disk: %w", err)
	}

	tmpArchiveFilesDirectory, err := os.MkdirTemp("", "scanview-archive-out-")
	if err != nil {
		return nil, fmt.Errorf("cannot create archive temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpArchiveFilesDirectory) }()

	x := &xtractr.XFile{
		FilePath:  tmpArchiveFile.Name(),
		OutputDir: tmpArchiveFilesDirectory,
		FileMode:  0o600,
		DirMode:   0o700,
	}

	size, files, _, err := xtractr.ExtractFile(x)
	if err != nil {
		return nil, err
	}
	if err := b.take(size); err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, fPath := range files {
		if format.IsDirectory(fPath) {
			continue
		}

		// #nosec G304 - Reading extracted files from our own temp directory
		content, err := os.ReadFile(fPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read extracted file %s: %w", path.Base(fPath), err)
		}
		entries = append(entries, Entry{Name: path.Base(fPath), Content: content})
	}

	return entries, nil
}
