// Package blobstore defines the contract the chunked B-tree uses to persist
// and retrieve node blobs, plus two concrete implementations: an in-memory
// store for tests and attach-time flush_sync paths, and a pebble-backed
// store for a real process.
package blobstore

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/jenn-le/hivemap/handle"
)

// ErrNotFound is returned by Resolve when no blob exists for a handle. The
// chunked tree turns this into chunktree.ErrStorageUnavailable at its
// boundary; blobstore itself stays agnostic of the tree's error taxonomy.
var ErrNotFound = errors.New("blobstore: handle not found")

// Store is the host contract's "upload_blob"/resolve pair, content-addressed:
// the handle returned by Upload is always handle.Of(bytes), so storing the
// same bytes twice is a no-op past the first call.
type Store interface {
	// Upload persists bytes and returns its content handle.
	Upload(ctx context.Context, bytes []byte) (handle.Handle, error)
	// Resolve returns the bytes previously uploaded under h, or ErrNotFound.
	Resolve(ctx context.Context, h handle.Handle) ([]byte, error)
}

// NamedStore additionally supports the single named "hive" summary blob
// that the host summary contract reads and writes (spec.md §6).
type NamedStore interface {
	Store
	PutNamed(ctx context.Context, name string, bytes []byte) error
	GetNamed(ctx context.Context, name string) ([]byte, error)
}

// SummaryBlobName is the single named blob identifier for the attach
// summary, per spec.md §6.
const SummaryBlobName = "hive"
