// Package filestore defines the unified interface for export
// destinations.
//
// All providers (local filesystem, MinIO/S3, …) implement the Store
// interface. Callers depend only on this package — never on a specific
// provider package.
//
// Usage:
//
//	store := local.New("exports")
//	err := store.Put(ctx, "schema.xlsx", r, size, filestore.ContentTypeXLSX)
package filestore

import (
	"context"
	"io"
)

// ContentTypeXLSX is the MIME type of the workbook documents this
// project produces.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Store is the single interface all export destination providers must
// implement. Scoped to PUT (write) operations: exports land somewhere,
// they are never read back.
type Store interface {
	// Ping verifies the destination is reachable and writable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// Put stores the content read from r at key. The write is
	// all-or-nothing: a failed or cancelled Put leaves nothing at key,
	// and an existing object at key is replaced only on success.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}
