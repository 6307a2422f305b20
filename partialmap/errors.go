// Package partialmap implements the controller from spec.md §4.4: the
// public get/has/set/delete/clear surface, op submission and application,
// compaction scheduling, and summary production that ties ChunkedBTree,
// PendingState, SequencedState, and LeaderTracker together.
package partialmap

import "github.com/cockroachdb/errors"

// ErrInvalidKey is raised by Set/Delete on a nil or empty key (spec.md §7).
var ErrInvalidKey = errors.New("partialmap: key must be non-nil and non-empty")

// ErrUnknownOp is raised when an op arrives with a tag this controller does
// not recognize. It is a protocol violation and is never recovered from.
var ErrUnknownOp = errors.New("partialmap: unknown op tag")

// ErrNotLeader guards the leader-only invariant that a non-leader client
// never submits a Flush op (spec.md §5 Flush gating, §8 property 7).
var ErrNotLeader = errors.New("partialmap: flush attempted by non-leader client")
