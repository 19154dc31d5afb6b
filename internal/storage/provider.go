// Package storage defines the vault file-system abstraction and the line
// buffer used to patch documents.
package storage

// File is the metadata of one Markdown file in the vault.
type File struct {
	Path string
	// Checksum is the sha256 hex digest of the file content.
	Checksum string
}

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]File, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
}
