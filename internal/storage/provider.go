// Package storage abstracts the directory of raw export documents and the
// output directory for rendered snapshots.
package storage

import "github.com/starford/tramite/internal/models"

// Provider reads export documents.
type Provider interface {
	// List returns metadata for every .xml file under dir (relative to root),
	// sorted by path.
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
}

// Writer persists rendered output.
type Writer interface {
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
}
