// Package handle defines the opaque, comparable identifier that the rest of
// hivemap uses to refer to persisted blobs without ever inspecting their
// contents.
package handle

import (
	"encoding/hex"

	"github.com/minio/sha256-simd"
)

// Size is the length in bytes of a Handle.
const Size = sha256.Size

// Handle is a content hash of a persisted blob. It is comparable and usable
// directly as a map key, which is how both ChunkedBTree's handle_set and the
// blob stores index by it.
type Handle [Size]byte

// Zero reports whether h is the zero-value handle, the value
// ChunkedBTree.RootHandle returns alongside false when a tree has no
// persisted root.
func (h Handle) Zero() bool {
	return h == Handle{}
}

// String renders the handle as hex, for logs and the CLI.
func (h Handle) String() string {
	return hex.EncodeToString(h[:])
}

// Of computes the content-addressed handle for a blob's bytes. Two calls
// with identical bytes always produce the same handle; this is the
// "handle equality implies content equality" invariant from the chunked
// tree's shared-resources model.
func Of(data []byte) Handle {
	return Handle(sha256.Sum256(data))
}

// Set is an ordered multiset of handles, matching the chunked tree's
// handle_set: duplicates are tracked with reference counts so that a handle
// shared by two subtrees is not treated as garbage until both references are
// gone.
type Set struct {
	counts map[Handle]int
	order  []Handle
}

// NewSet builds a Set from an initial list of handles, in order.
func NewSet(handles ...Handle) *Set {
	s := &Set{counts: make(map[Handle]int, len(handles))}
	for _, h := range handles {
		s.Add(h)
	}
	return s
}

// Add records one more reference to h.
func (s *Set) Add(h Handle) {
	if s.counts == nil {
		s.counts = make(map[Handle]int)
	}
	if s.counts[h] == 0 {
		s.order = append(s.order, h)
	}
	s.counts[h]++
}

// Remove drops one reference to h, removing it from the set entirely once
// its reference count reaches zero.
func (s *Set) Remove(h Handle) {
	if s.counts[h] <= 1 {
		delete(s.counts, h)
		for i, existing := range s.order {
			if existing == h {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return
	}
	s.counts[h]--
}

// Contains reports whether h has at least one outstanding reference.
func (s *Set) Contains(h Handle) bool {
	return s.counts[h] > 0
}

// Len returns the number of distinct handles in the set.
func (s *Set) Len() int {
	return len(s.order)
}

// All returns every distinct handle in insertion order, used to enumerate
// GC roots.
func (s *Set) All() []Handle {
	out := make([]Handle, len(s.order))
	copy(out, s.order)
	return out
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	clone := &Set{
		counts: make(map[Handle]int, len(s.counts)),
		order:  make([]Handle, len(s.order)),
	}
	for k, v := range s.counts {
		clone.counts[k] = v
	}
	copy(clone.order, s.order)
	return clone
}
