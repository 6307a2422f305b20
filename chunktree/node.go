package chunktree

// node is the two-variant B-tree node shape from spec.md §3: a leaf carries
// parallel keys/values, an interior carries keys and one more child than it
// has keys. It mirrors iavlx.Node's isLeaf() discriminant, generalized from
// a binary key/left/right shape to an order-O multiway shape.
type node struct {
	leaf bool

	// leaf fields
	keys   [][]byte
	values [][]byte

	// interior fields: len(children) == len(keys)+1
	children []*LazyNode
}

func emptyLeaf() *node {
	return &node{leaf: true}
}

// find returns the index of key within a sorted leaf's keys, and whether it
// was found.
func (n *node) find(key []byte) (idx int, found bool) {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		switch compare(key, n.keys[mid]) {
		case 0:
			return mid, true
		case -1:
			hi = mid
		default:
			lo = mid + 1
		}
	}
	return lo, false
}

// childIndex returns the index of the child that key belongs under: the
// first index i such that key < keys[i], or len(children)-1 if no such
// index exists (spec.md §4.1 Lookup).
func (n *node) childIndex(key []byte) int {
	i := 0
	for i < len(n.keys) && compare(key, n.keys[i]) >= 0 {
		i++
	}
	return i
}

func compare(a, b []byte) int {
	switch {
	case len(a) == len(b):
		for i := range a {
			if a[i] != b[i] {
				if a[i] < b[i] {
					return -1
				}
				return 1
			}
		}
		return 0
	case len(a) < len(b):
		for i := range a {
			if a[i] != b[i] {
				if a[i] < b[i] {
					return -1
				}
				return 1
			}
		}
		return -1
	default:
		for i := range b {
			if a[i] != b[i] {
				if a[i] < b[i] {
					return -1
				}
				return 1
			}
		}
		return 1
	}
}

// insertBytes returns a new slice with item spliced in at idx, preserving
// everything else — splice-insert semantics per spec.md §9: result length
// equals input length + 1, and the element originally at idx is shifted
// right rather than overwritten.
func insertBytes(s [][]byte, idx int, item []byte) [][]byte {
	out := make([][]byte, len(s)+1)
	copy(out, s[:idx])
	out[idx] = item
	copy(out[idx+1:], s[idx:])
	return out
}

func removeBytes(s [][]byte, idx int) [][]byte {
	out := make([][]byte, len(s)-1)
	copy(out, s[:idx])
	copy(out[idx:], s[idx+1:])
	return out
}

func insertLazy(s []*LazyNode, idx int, item *LazyNode) []*LazyNode {
	out := make([]*LazyNode, len(s)+1)
	copy(out, s[:idx])
	out[idx] = item
	copy(out[idx+1:], s[idx:])
	return out
}

func removeLazy(s []*LazyNode, idx int) []*LazyNode {
	out := make([]*LazyNode, len(s)-1)
	copy(out, s[:idx])
	copy(out[idx:], s[idx+1:])
	return out
}

// replaceChildWithSplit returns a new children slice with children[idx]
// replaced by the two halves of a split, and a new keys slice with the
// split's separator spliced in at idx.
func replaceChildWithSplit(keys [][]byte, children []*LazyNode, idx int, left, right *LazyNode, sep []byte) ([][]byte, []*LazyNode) {
	newChildren := make([]*LazyNode, len(children)+1)
	copy(newChildren, children[:idx])
	newChildren[idx] = left
	newChildren[idx+1] = right
	copy(newChildren[idx+2:], children[idx+1:])

	newKeys := insertBytes(keys, idx, sep)
	return newKeys, newChildren
}
