package chunktree

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/jenn-le/hivemap/handle"
)

// Node blobs are tagged by shape, matching spec.md §6: a leaf's blob
// contains a values array, an interior's does not. The varint/length-
// prefixed framing mirrors iavlx.encodeNode/decodeNode, generalized from a
// single fixed-shape record to the two tagged variants this spec's nodes
// can take.
const (
	tagLeaf     byte = 0
	tagInterior byte = 1
)

func putUvarint(buf []byte, v uint64) []byte {
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, v)
	return append(buf, tmp[:n]...)
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// encodeLeaf serializes a leaf node's keys and values.
func encodeLeaf(keys, values [][]byte) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, tagLeaf)
	buf = putUvarint(buf, uint64(len(keys)))
	for i := range keys {
		buf = putBytes(buf, keys[i])
		buf = putBytes(buf, values[i])
	}
	return buf
}

// encodeInterior serializes an interior node's keys and resolved child
// handles. Children must already be persisted (have handles) by the time
// this is called; see uploadNode in persist.go.
func encodeInterior(keys [][]byte, childHandles []handle.Handle) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, tagInterior)
	buf = putUvarint(buf, uint64(len(childHandles)))
	for _, k := range keys {
		buf = putBytes(buf, k)
	}
	for _, h := range childHandles {
		buf = append(buf, h[:]...)
	}
	return buf
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, errors.New("truncated varint")
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) bytes(n uint64) ([]byte, error) {
	if uint64(len(r.data)-r.pos) < n {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *byteReader) lenPrefixedBytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	return r.bytes(n)
}

// decodeNode parses a node blob back into its in-memory form. The interior
// variant's children are handle-only LazyNodes; callers resolve them
// lazily on first traversal.
func decodeNode(bytes []byte) (*node, error) {
	if len(bytes) == 0 {
		return nil, errors.New("empty node blob")
	}
	r := &byteReader{data: bytes}
	tag := r.data[r.pos]
	r.pos++
	count, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagLeaf:
		keys := make([][]byte, count)
		values := make([][]byte, count)
		for i := uint64(0); i < count; i++ {
			keys[i], err = r.lenPrefixedBytes()
			if err != nil {
				return nil, err
			}
			values[i], err = r.lenPrefixedBytes()
			if err != nil {
				return nil, err
			}
		}
		return &node{leaf: true, keys: keys, values: values}, nil
	case tagInterior:
		keys := make([][]byte, 0)
		if count > 0 {
			keys = make([][]byte, count-1)
			for i := range keys {
				keys[i], err = r.lenPrefixedBytes()
				if err != nil {
					return nil, err
				}
			}
		}
		children := make([]*LazyNode, count)
		for i := uint64(0); i < count; i++ {
			hBytes, err := r.bytes(uint64(handle.Size))
			if err != nil {
				return nil, err
			}
			var h handle.Handle
			copy(h[:], hBytes)
			children[i] = handleNode(h)
		}
		return &node{leaf: false, keys: keys, children: children}, nil
	default:
		return nil, errors.Newf("unknown node tag %d", tag)
	}
}
