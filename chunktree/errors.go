package chunktree

import "github.com/cockroachdb/errors"

// ErrInvalidOrder is a fatal configuration error raised by New when order
// is below the minimum fan-out of 2 (spec.md §7).
var ErrInvalidOrder = errors.New("chunktree: order must be >= 2")

// ErrStorageUnavailable wraps a failure to resolve or upload a handle
// against the backing blob store. It is never retried inside the tree; the
// controller decides whether and how to retry.
var ErrStorageUnavailable = errors.New("chunktree: storage unavailable")

// ErrCorruptNode wraps a failure to decode bytes resolved from a handle
// into a valid leaf or interior node.
var ErrCorruptNode = errors.New("chunktree: corrupt node")

func storageUnavailable(err error) error {
	return errors.WithSecondaryError(ErrStorageUnavailable, err)
}

func corruptNode(err error) error {
	return errors.WithSecondaryError(ErrCorruptNode, err)
}
