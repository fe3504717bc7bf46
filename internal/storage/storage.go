// Package storage defines the Storage interface and common types for all
// content-store backends in the registry.
//
// New backends are added by implementing the Storage interface and registering
// with the factory via an init() function in the backend's own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The api package imports each backend with a blank import to trigger init().
// Adding a new backend requires only a blank import there, with no changes to
// the factory itself.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for all content-store backends.
// Implementations must support upload, download, delete, and metadata lookup.
type Storage interface {
	// Upload stores a package blob and returns the storage result with path and checksum
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	// Download retrieves a blob and returns a reader. The reader supports
	// seeking when the backend serves from local files, which lets the CDN
	// endpoint honour Range requests.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a blob from storage
	Delete(ctx context.Context, path string) error

	// Exists checks if a blob exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves blob metadata without downloading the entire blob
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
}

// UploadResult contains information about an uploaded blob
type UploadResult struct {
	// Path is the storage path where the blob was stored
	Path string

	// Size is the blob size in bytes
	Size int64

	// Checksum is the SHA256 hash of the blob contents
	Checksum string
}

// FileMetadata contains metadata about a stored blob
type FileMetadata struct {
	// Path is the storage path of the blob
	Path string

	// Size is the blob size in bytes
	Size int64

	// Checksum is the SHA256 hash of the blob contents
	Checksum string

	// LastModified is the timestamp when the blob was last modified
	LastModified time.Time
}
