package chunktree

import (
	"context"
	"sort"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/handle"
)

// uploadState collects the handles freshly minted during one Flush call,
// guarded by a mutex since a worker pool may upload sibling subtrees
// concurrently.
type uploadState struct {
	mu         sync.Mutex
	newHandles []handle.Handle
}

func (s *uploadState) record(h handle.Handle) {
	s.mu.Lock()
	s.newHandles = append(s.newHandles, h)
	s.mu.Unlock()
}

// uploadNode persists every structurally new node beneath ptr, bottom-up,
// reusing the existing handle of anything already persisted rather than
// re-uploading it (spec.md §4.1 Persistence mapping / Handle bookkeeping).
// ptr is mutated in place to become handle-backed once uploaded. A
// handle-less node may also be referenced by the tree Flush was called on
// (Flush starts from that tree's root and reuses unchanged subtrees); that
// tree then sees the same handle, and the node's contents do not change.
// When pool is non-nil, an interior node's not-yet-uploaded children upload
// concurrently through it; a node itself only uploads once every child it
// references already has a handle.
func uploadNode(ctx context.Context, store blobstore.Store, pool pond.Pool, ptr *LazyNode, state *uploadState) (handle.Handle, error) {
	if ptr.hasHandle {
		return ptr.h, nil
	}

	n := ptr.resolved
	var bytes []byte
	if n.leaf {
		bytes = encodeLeaf(n.keys, n.values)
	} else {
		childHandles := make([]handle.Handle, len(n.children))
		if pool != nil && len(n.children) > 1 {
			group := pool.NewGroupContext(ctx)
			for i, c := range n.children {
				i, c := i, c
				group.SubmitErr(func() error {
					h, err := uploadNode(ctx, store, pool, c, state)
					if err != nil {
						return err
					}
					childHandles[i] = h
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return handle.Handle{}, err
			}
		} else {
			for i, c := range n.children {
				h, err := uploadNode(ctx, store, pool, c, state)
				if err != nil {
					return handle.Handle{}, err
				}
				childHandles[i] = h
			}
		}
		bytes = encodeInterior(n.keys, childHandles)
	}

	h, err := store.Upload(ctx, bytes)
	if err != nil {
		return handle.Handle{}, storageUnavailable(err)
	}
	state.record(h)
	ptr.h = h
	ptr.hasHandle = true
	return h, nil
}

// FlushOutput is the delta produced by Flush, applied to every client's
// tree instance via Update (spec.md §4.1, §6).
type FlushOutput struct {
	NewRootHandle  handle.Handle
	NewHandles     []handle.Handle
	DeletedHandles []handle.Handle
}

// InlineLeaf packs a small map directly into one leaf, skipping the blob
// store entirely (spec.md §4.1 flush_sync).
type InlineLeaf struct {
	Keys   [][]byte
	Values [][]byte
}

// Flush applies every pending update and delete (order-independent, since
// each key appears at most once across the two) to a snapshot of the tree,
// uploads every structurally new node, and returns the resulting handle
// delta. The receiver itself is left untouched; the controller installs the
// result via Update once the accompanying Flush op comes back.
func (t *ChunkedBTree) Flush(ctx context.Context, updates map[string][]byte, deletes map[string]struct{}) (FlushOutput, error) {
	working := t.root
	var deletedHandles []handle.Handle

	for key, value := range updates {
		replacement, sp, err := setInNode(ctx, t.store, t.order, working, []byte(key), value, &deletedHandles)
		if err != nil {
			return FlushOutput{}, err
		}
		working = installRoot(replacement, sp)
	}
	for key := range deletes {
		replacement, changed, err := deleteInNode(ctx, t.store, working, []byte(key), &deletedHandles)
		if err != nil {
			return FlushOutput{}, err
		}
		if changed {
			working = replacement
		}
	}

	if working == nil {
		working = freshNode(emptyLeaf())
	}

	state := &uploadState{}
	rootHandle, err := uploadNode(ctx, t.store, t.pool, working, state)
	if err != nil {
		return FlushOutput{}, err
	}

	return FlushOutput{
		NewRootHandle:  rootHandle,
		NewHandles:     state.newHandles,
		DeletedHandles: deletedHandles,
	}, nil
}

// FlushSync packs the given updates/deletes, merged over the tree's current
// (assumed-small) contents, into a single inline leaf without uploading
// anything. Nodes not yet resolved are read from the blob store.
func (t *ChunkedBTree) FlushSync(ctx context.Context, updates map[string][]byte, deletes map[string]struct{}) (InlineLeaf, error) {
	merged := make(map[string][]byte)

	var walk func(ptr *LazyNode) error
	walk = func(ptr *LazyNode) error {
		if ptr == nil {
			return nil
		}
		n, err := ptr.resolve(ctx, t.store)
		if err != nil {
			return err
		}
		if n.leaf {
			for i, k := range n.keys {
				merged[string(k)] = n.values[i]
			}
			return nil
		}
		for _, c := range n.children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.root); err != nil {
		return InlineLeaf{}, err
	}

	for k, v := range updates {
		merged[k] = v
	}
	for k := range deletes {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := InlineLeaf{Keys: make([][]byte, len(keys)), Values: make([][]byte, len(keys))}
	for i, k := range keys {
		out.Keys[i] = []byte(k)
		out.Values[i] = merged[k]
	}
	return out, nil
}

// installRoot folds a setInNode/deleteInNode result back into a single root
// pointer, building a new interior root when the previous root split.
func installRoot(replacement *LazyNode, sp *split) *LazyNode {
	if sp == nil {
		return replacement
	}
	return freshNode(&node{
		leaf:     false,
		keys:     [][]byte{sp.sep},
		children: []*LazyNode{sp.left, sp.right},
	})
}
