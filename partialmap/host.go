package partialmap

import (
	"context"

	"github.com/jenn-le/hivemap/leader"
)

// LeaderState is the promoted/demoted signal the host feeds the controller,
// fed in turn by a leader.Tracker the host owns (spec.md §6 host runtime
// contract's leader_signal; election itself stays out of scope here).
type LeaderState = leader.Signal

// Host is the host runtime contract the controller consumes (spec.md §6):
// sequencing ops, reporting attach state, and surfacing leader transitions.
// Everything else (connectivity, the ordering service itself) lives outside
// this module.
type Host interface {
	// SubmitLocalMessage hands op to the ordering service. The op returns
	// later, sequenced, through Apply.
	SubmitLocalMessage(ctx context.Context, op Op) error
	// LastSequenceNumber is the highest sequence number this client has
	// observed.
	LastSequenceNumber() int64
	// IsAttached reports whether this client is connected to the ordering
	// service. Detached clients apply mutations locally without
	// submitting an op (spec.md §4.4 Writes).
	IsAttached() bool
	// LeaderSignal delivers promoted/demoted transitions as they occur.
	LeaderSignal() <-chan LeaderState
}

// Codec encodes and decodes user values to and from the bytes carried on
// Set ops and leaf blobs. Generalizes spec.md §6's "serialization of user
// values ... out of scope" into the narrowest shape that keeps the
// controller generic over V.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
