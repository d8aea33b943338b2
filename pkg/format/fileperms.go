package format

import "io/fs"

// Common file permission constants used throughout the application.
// These constants provide named values for file and directory permissions
// instead of using magic numbers.
const (
	// FilePublicRead is for files that should be world-readable (rw-r--r--)
	// Used for filtered report pages written by the filter command
	FilePublicRead fs.FileMode = 0644

	// FileUserReadWrite is for files that should only be readable by owner (rw-------)
	// Used for log files
	FileUserReadWrite fs.FileMode = 0600
)
