// Package storage defines the file-system abstraction behind fixtures and
// uploaded files.
package storage

import (
	"io"

	"github.com/starford/talentflow/internal/models"
)

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// List returns metadata for every file under dir whose name ends in ext.
	// An empty ext matches every file.
	List(dir, ext string) ([]models.FileMetadata, error)
	// Stat returns metadata for the file at path.
	Stat(path string) (models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// WriteFrom atomically streams r to path and returns its metadata.
	WriteFrom(path string, r io.Reader) (models.FileMetadata, error)
	// Delete removes the file at path.
	Delete(path string) error
}
