package partialmap

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/jenn-le/hivemap/handle"
)

// OpKind tags the four wire op variants from spec.md §6.
type OpKind string

const (
	KindSet    OpKind = "set"
	KindDelete OpKind = "delete"
	KindClear  OpKind = "clear"
	KindFlush  OpKind = "flush"
)

// FlushUpdate mirrors chunktree.FlushOutput on the wire: a bare struct
// rather than importing chunktree's type directly, so the op codec does
// not need to know chunktree's internal representation beyond handles.
type FlushUpdate struct {
	NewRoot        handle.Handle   `json:"new_root"`
	NewHandles     []handle.Handle `json:"new_handles,omitempty"`
	DeletedHandles []handle.Handle `json:"deleted_handles,omitempty"`
}

// Op is the tagged union the ordering service sequences and the host
// delivers back to every client (spec.md §6 Op wire schema). Only the
// fields relevant to Kind are populated.
type Op struct {
	Kind              OpKind      `json:"kind"`
	Key               string      `json:"key,omitempty"`
	Value             []byte      `json:"value,omitempty"`
	Update            FlushUpdate `json:"update,omitempty"`
	RefSequenceNumber uint64      `json:"ref_sequence_number,omitempty"`

	// Seq and Local are not part of the wire payload; the host sets both
	// when it delivers a sequenced op back to this client: Seq is the
	// assigned sequence number, and Local reports whether this client
	// submitted the op. The controller reads them as delivered.
	Seq   int64 `json:"-"`
	Local bool  `json:"-"`
}

// SetOp builds a Set op.
func SetOp(key string, value []byte) Op {
	return Op{Kind: KindSet, Key: key, Value: value}
}

// DeleteOp builds a Delete op.
func DeleteOp(key string) Op {
	return Op{Kind: KindDelete, Key: key}
}

// ClearOp builds a Clear op.
func ClearOp() Op {
	return Op{Kind: KindClear}
}

// FlushOp builds a Flush op carrying the tree update and reference
// sequence number a compaction produced.
func FlushOp(update FlushUpdate, refSeq uint64) Op {
	return Op{Kind: KindFlush, Update: update, RefSequenceNumber: refSeq}
}

// Encode marshals op for submission to the host runtime.
func Encode(op Op) ([]byte, error) {
	b, err := json.Marshal(op)
	if err != nil {
		return nil, errors.Wrap(err, "partialmap: encode op")
	}
	return b, nil
}

// Decode unmarshals an op received from the ordering service, rejecting
// any kind it does not recognize (spec.md §7 UnknownOp, fatal).
func Decode(data []byte) (Op, error) {
	var op Op
	if err := json.Unmarshal(data, &op); err != nil {
		return Op{}, errors.Wrap(err, "partialmap: decode op")
	}
	switch op.Kind {
	case KindSet, KindDelete, KindClear, KindFlush:
		return op, nil
	default:
		return Op{}, errors.WithDetailf(ErrUnknownOp, "kind=%q", op.Kind)
	}
}
