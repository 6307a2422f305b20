package chunktree

import (
	"context"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/handle"
)

// LazyNode is the tagged variant from spec.md §9: either Handle or
// Resolved(node), with interior mutability limited to the one transition
// from handle-only to resolved (memoized on first visit), or back again on
// eviction. It mirrors the teacher's NodePointer, generalized from a single
// atomic.Pointer swap to the evict-and-reload cycle this spec requires.
type LazyNode struct {
	h         handle.Handle
	hasHandle bool
	resolved  *node
}

// freshNode wraps a node that was just constructed in memory and has never
// been uploaded. It carries no handle until a flush uploads it.
func freshNode(n *node) *LazyNode {
	return &LazyNode{resolved: n}
}

// handleNode wraps a handle whose node has not yet been resolved.
func handleNode(h handle.Handle) *LazyNode {
	return &LazyNode{h: h, hasHandle: true}
}

// resolve returns the node this wrapper refers to, fetching and decoding it
// from the store on first visit and caching the result for subsequent
// visits (spec.md §3 Lifecycle).
func (l *LazyNode) resolve(ctx context.Context, store blobstore.Store) (*node, error) {
	if l.resolved != nil {
		return l.resolved, nil
	}
	bytes, err := store.Resolve(ctx, l.h)
	if err != nil {
		return nil, storageUnavailable(err)
	}
	n, err := decodeNode(bytes)
	if err != nil {
		return nil, corruptNode(err)
	}
	l.resolved = n
	return n, nil
}

// evict performs the post-order, budget-limited cache drop described in
// spec.md §4.5: a wrapper may be dropped back to handle-only only if it
// (and everything beneath it) is fully persisted, since a handle-less node
// has no way to be reloaded once forgotten. It returns whether this
// subtree is entirely safe for an ancestor to forget, regardless of
// whether the budget allowed an actual drop this pass.
func (l *LazyNode) evict(budget *int) bool {
	if l.resolved == nil {
		// Already handle-only (or never resolved); trivially reloadable.
		return true
	}
	n := l.resolved
	safe := l.hasHandle
	if !n.leaf {
		for _, c := range n.children {
			if !c.evict(budget) {
				safe = false
			}
		}
	}
	if !safe {
		return false
	}
	if n.leaf {
		if *budget > 0 {
			*budget -= len(n.keys)
			l.resolved = nil
		}
		return true
	}
	if *budget > 0 {
		l.resolved = nil
	}
	return true
}

// workingSetSize counts keys resident in memory beneath l: leaf keys of
// every resolved leaf, excluding anything behind an unresolved handle.
func (l *LazyNode) workingSetSize() int {
	if l == nil || l.resolved == nil {
		return 0
	}
	n := l.resolved
	if n.leaf {
		return len(n.keys)
	}
	total := 0
	for _, c := range n.children {
		total += c.workingSetSize()
	}
	return total
}
