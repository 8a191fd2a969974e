// Package storage reads the content directory the importer syncs from.
package storage

import "time"

// Ext is the file extension of importable content files.
const Ext = ".html"

// FileMeta describes one content file.
type FileMeta struct {
	// Path is relative to the content root, with forward slashes.
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for content file access.
type Provider interface {
	// List returns metadata for every content file under dir (relative to the root).
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
}
