package ports

// FileSystem is where snapshots and run summaries are written.
type FileSystem interface {
	// WriteFile replaces the file at path with data.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)
}
