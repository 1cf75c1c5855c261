// Package storage defines the file-system abstraction used for the cache
// directory and the generated site.
package storage

import "io/fs"

// Provider is the interface for file operations below a fixed root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Stat returns file info for path (relative to root).
	Stat(path string) (fs.FileInfo, error)
	// Write atomically writes content to path (relative to root),
	// creating parent directories as needed.
	Write(path string, content []byte) error
	// RemoveAll removes path and anything below it. Missing paths are not an error.
	RemoveAll(path string) error
}
