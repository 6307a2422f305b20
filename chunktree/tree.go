// Package chunktree implements the chunked B-tree from spec.md §4.1: an
// immutable, lazily-loaded, handle-backed sorted map over string keys whose
// nodes are individually persisted as blobs. It generalizes the teacher's
// binary, in-memory-or-CosmosDB AVL tree (iavlx.Node / iavlx.NodePointer)
// to an order-O multiway tree backed by an arbitrary content-addressed
// blobstore.Store.
package chunktree

import (
	"context"

	"github.com/alitto/pond/v2"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/handle"
)

// DefaultOrder is the B-tree's default fan-out bound (spec.md §6).
const DefaultOrder = 32

// ChunkedBTree is the immutable chunked tree value from spec.md §3. Every
// mutating method returns a new value; the receiver is left untouched,
// which is what lets reads against an "old" tree instance keep returning
// pre-mutation values per spec.md §9 Immutable sharing.
type ChunkedBTree struct {
	order   int
	store   blobstore.Store
	root    *LazyNode
	handles *handle.Set
	pool    pond.Pool
}

// Option configures a ChunkedBTree at construction time.
type Option func(*ChunkedBTree)

// WithUploadPool fans the node uploads a Flush performs out across pool
// instead of uploading them one at a time. Sibling subtrees with no data
// dependency on one another upload concurrently; a node still uploads only
// after every child it references has its handle (spec.md §4.1 Persistence
// mapping). Grounded on the teacher's iavlx/commit.go hashChan/saveChan
// pipeline, generalized from one node at a time to the batch this tree's
// Flush produces per call.
func WithUploadPool(pool pond.Pool) Option {
	return func(t *ChunkedBTree) { t.pool = pool }
}

func applyOptions(t *ChunkedBTree, opts []Option) {
	for _, opt := range opts {
		opt(t)
	}
}

// New creates an empty chunked tree of the given order against store.
func New(order int, store blobstore.Store, opts ...Option) (*ChunkedBTree, error) {
	if order < 2 {
		return nil, ErrInvalidOrder
	}
	t := &ChunkedBTree{order: order, store: store, root: nil, handles: handle.NewSet()}
	applyOptions(t, opts)
	return t, nil
}

// FromRoot hydrates a chunked tree from a previously persisted root handle
// and its known handle set, as produced by a host summary's load().
func FromRoot(order int, store blobstore.Store, root handle.Handle, handles *handle.Set, opts ...Option) (*ChunkedBTree, error) {
	if order < 2 {
		return nil, ErrInvalidOrder
	}
	if handles == nil {
		handles = handle.NewSet()
	}
	t := &ChunkedBTree{order: order, store: store, root: handleNode(root), handles: handles}
	applyOptions(t, opts)
	return t, nil
}

// FromInline hydrates a chunked tree from an attach-time inline leaf,
// without resolving anything from the blob store (spec.md §6 inline_leaf).
func FromInline(order int, store blobstore.Store, inline InlineLeaf, opts ...Option) (*ChunkedBTree, error) {
	if order < 2 {
		return nil, ErrInvalidOrder
	}
	if len(inline.Keys) == 0 {
		return New(order, store, opts...)
	}
	root := freshNode(&node{leaf: true, keys: inline.Keys, values: inline.Values})
	t := &ChunkedBTree{order: order, store: store, root: root, handles: handle.NewSet()}
	applyOptions(t, opts)
	return t, nil
}

// Order returns the tree's configured fan-out bound.
func (t *ChunkedBTree) Order() int {
	return t.order
}

// Get resolves key, possibly loading handles along the way.
func (t *ChunkedBTree) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, _, err := getInNode(ctx, t.store, t.root, key)
	return value, err
}

// Has reports whether key is present, consulting the tree the same way Get
// does (spec.md §9: has must not stop at a cache/pending view).
func (t *ChunkedBTree) Has(ctx context.Context, key []byte) (bool, error) {
	_, found, err := getInNode(ctx, t.store, t.root, key)
	return found, err
}

// Set returns a new tree containing key=value. Every LazyNode traversed
// whose resolved form is replaced by a rebuilt node has its handle pushed
// to deletedOut.
func (t *ChunkedBTree) Set(ctx context.Context, key, value []byte, deletedOut *[]handle.Handle) (*ChunkedBTree, error) {
	replacement, sp, err := setInNode(ctx, t.store, t.order, t.root, key, value, deletedOut)
	if err != nil {
		return nil, err
	}
	return &ChunkedBTree{order: t.order, store: t.store, root: installRoot(replacement, sp), handles: t.handles, pool: t.pool}, nil
}

// Delete returns a new tree without key. A delete on an absent key returns
// the receiver unchanged.
func (t *ChunkedBTree) Delete(ctx context.Context, key []byte, deletedOut *[]handle.Handle) (*ChunkedBTree, error) {
	replacement, changed, err := deleteInNode(ctx, t.store, t.root, key, deletedOut)
	if err != nil {
		return nil, err
	}
	if !changed {
		return t, nil
	}
	return &ChunkedBTree{order: t.order, store: t.store, root: replacement, handles: t.handles, pool: t.pool}, nil
}

// Update applies a FlushOutput to t, swapping the root to a LazyNode
// pointing at the new root handle and reconciling the handle set
// (spec.md §4.1 Public contract, property #5).
func (t *ChunkedBTree) Update(delta FlushOutput) *ChunkedBTree {
	newHandles := t.handles.Clone()
	for _, h := range delta.NewHandles {
		newHandles.Add(h)
	}
	for _, h := range delta.DeletedHandles {
		newHandles.Remove(h)
	}
	return &ChunkedBTree{order: t.order, store: t.store, root: handleNode(delta.NewRootHandle), handles: newHandles, pool: t.pool}
}

// Clear returns an empty tree of the same order.
func (t *ChunkedBTree) Clear() *ChunkedBTree {
	return &ChunkedBTree{order: t.order, store: t.store, root: nil, handles: handle.NewSet(), pool: t.pool}
}

// Evict drops cached node payloads to bring the working set down by
// roughly countHint entries, never discarding content that has no handle
// to reload it from (spec.md §4.5).
func (t *ChunkedBTree) Evict(countHint int) {
	if t.root == nil {
		return
	}
	budget := countHint
	t.root.evict(&budget)
}

// WorkingSetSize returns the count of keys currently materialized in
// memory, excluding anything behind an unresolved handle.
func (t *ChunkedBTree) WorkingSetSize() int {
	return t.root.workingSetSize()
}

// AllHandles enumerates every handle reachable from the tree's handle set,
// used as GC roots.
func (t *ChunkedBTree) AllHandles() []handle.Handle {
	return t.handles.All()
}

// HandleSet exposes the tree's reachable-handle bookkeeping directly, for
// callers (the controller's GC data surface) that need set semantics
// rather than a flat slice.
func (t *ChunkedBTree) HandleSet() *handle.Set {
	return t.handles
}

// RootHandle returns the tree's root handle and true if the root is
// handle-backed (persisted or hydrated from a summary). It returns
// (zero, false) for an empty tree or one whose root was built fresh and
// never flushed, used by the controller's summarize() to decide whether a
// persisted summary can reference a root handle at all.
func (t *ChunkedBTree) RootHandle() (handle.Handle, bool) {
	if t.root == nil || !t.root.hasHandle {
		return handle.Handle{}, false
	}
	return t.root.h, true
}
