package chunktree

import (
	"context"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/handle"
)

// split describes the pair of nodes produced when a node would otherwise
// reach order entries, and the separator key promoted to the parent
// (spec.md §4.1 Insertion).
type split struct {
	left, right *LazyNode
	sep         []byte
}

// setInNode performs the recursive immutable insert/update described in
// spec.md §4.1, generalized from iavlx.setRecursive's binary rotate-on-
// imbalance shape to order-O splice-and-split. Exactly one of
// (replacement, splitResult) is non-nil on success.
func setInNode(ctx context.Context, store blobstore.Store, order int, ptr *LazyNode, key, value []byte, deleted *[]handle.Handle) (replacement *LazyNode, sp *split, err error) {
	if ptr == nil {
		return freshNode(&node{leaf: true, keys: [][]byte{key}, values: [][]byte{value}}), nil, nil
	}

	n, err := ptr.resolve(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	if ptr.hasHandle {
		*deleted = append(*deleted, ptr.h)
	}

	if n.leaf {
		idx, found := n.find(key)
		if found {
			newValues := make([][]byte, len(n.values))
			copy(newValues, n.values)
			newValues[idx] = value
			return freshNode(&node{leaf: true, keys: n.keys, values: newValues}), nil, nil
		}

		newKeys := insertBytes(n.keys, idx, key)
		newValues := insertBytes(n.values, idx, value)
		if len(newKeys) < order {
			return freshNode(&node{leaf: true, keys: newKeys, values: newValues}), nil, nil
		}

		leftCount := (order + 1) / 2 // ceil(order/2)
		left := freshNode(&node{leaf: true, keys: newKeys[:leftCount], values: newValues[:leftCount]})
		right := freshNode(&node{leaf: true, keys: newKeys[leftCount:], values: newValues[leftCount:]})
		return nil, &split{left: left, right: right, sep: newKeys[leftCount]}, nil
	}

	i := n.childIndex(key)
	childReplacement, childSplit, err := setInNode(ctx, store, order, n.children[i], key, value, deleted)
	if err != nil {
		return nil, nil, err
	}

	if childSplit == nil {
		newChildren := make([]*LazyNode, len(n.children))
		copy(newChildren, n.children)
		newChildren[i] = childReplacement
		return freshNode(&node{leaf: false, keys: n.keys, children: newChildren}), nil, nil
	}

	newKeys, newChildren := replaceChildWithSplit(n.keys, n.children, i, childSplit.left, childSplit.right, childSplit.sep)
	if len(newKeys) < order {
		return freshNode(&node{leaf: false, keys: newKeys, children: newChildren}), nil, nil
	}

	mid := len(newKeys) / 2
	left := freshNode(&node{leaf: false, keys: newKeys[:mid], children: newChildren[:mid+1]})
	right := freshNode(&node{leaf: false, keys: newKeys[mid+1:], children: newChildren[mid+1:]})
	return nil, &split{left: left, right: right, sep: newKeys[mid]}, nil
}

// deleteInNode performs the recursive immutable delete described in
// spec.md §4.1: no merging or rebalancing. changed is false iff key was
// absent anywhere along the path, in which case ptr (and every ancestor)
// must be returned unchanged.
func deleteInNode(ctx context.Context, store blobstore.Store, ptr *LazyNode, key []byte, deleted *[]handle.Handle) (replacement *LazyNode, changed bool, err error) {
	if ptr == nil {
		return nil, false, nil
	}

	n, err := ptr.resolve(ctx, store)
	if err != nil {
		return nil, false, err
	}

	if n.leaf {
		idx, found := n.find(key)
		if !found {
			return ptr, false, nil
		}
		if ptr.hasHandle {
			*deleted = append(*deleted, ptr.h)
		}
		newKeys := removeBytes(n.keys, idx)
		newValues := removeBytes(n.values, idx)
		return freshNode(&node{leaf: true, keys: newKeys, values: newValues}), true, nil
	}

	i := n.childIndex(key)
	childReplacement, childChanged, err := deleteInNode(ctx, store, n.children[i], key, deleted)
	if err != nil {
		return nil, false, err
	}
	if !childChanged {
		return ptr, false, nil
	}
	if ptr.hasHandle {
		*deleted = append(*deleted, ptr.h)
	}
	newChildren := make([]*LazyNode, len(n.children))
	copy(newChildren, n.children)
	newChildren[i] = childReplacement
	return freshNode(&node{leaf: false, keys: n.keys, children: newChildren}), true, nil
}

// getInNode performs the recursive lookup from spec.md §4.1 Lookup.
func getInNode(ctx context.Context, store blobstore.Store, ptr *LazyNode, key []byte) (value []byte, found bool, err error) {
	if ptr == nil {
		return nil, false, nil
	}
	n, err := ptr.resolve(ctx, store)
	if err != nil {
		return nil, false, err
	}
	if n.leaf {
		idx, ok := n.find(key)
		if !ok {
			return nil, false, nil
		}
		return n.values[idx], true, nil
	}
	return getInNode(ctx, store, n.children[n.childIndex(key)], key)
}
