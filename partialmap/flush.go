package partialmap

import (
	"context"

	"github.com/jenn-le/hivemap/chunktree"
)

// ApplyLeaderSignal ingests a promoted/demoted transition from the host and
// re-evaluates flush conditions on promotion (spec.md §4.4 state machine,
// §5 Flush gating: "leader promotion re-checks the gate").
func (m *Map[V]) ApplyLeaderSignal(ctx context.Context, sig LeaderState) error {
	if !m.leader.Apply(sig) {
		return nil
	}
	return m.reevaluateIfLeader(ctx)
}

// applyFlush handles a sequenced Flush op per spec.md §4.4: a local flush
// clears the awaiting-ack flag regardless of staleness; a flush whose
// ref_sequence_number does not exceed the last one applied is a stale
// concurrent attempt and is dropped without touching tree state (spec.md
// §7 StaleFlush, §8 property 8).
func (m *Map[V]) applyFlush(op Op) error {
	if op.Local {
		m.flush = flushNone
	}

	if op.RefSequenceNumber <= m.lastFlushRefSeq {
		if m.metric != nil {
			m.metric.FlushesIgnored.Inc()
		}
		return nil
	}

	m.lastFlushRefSeq = op.RefSequenceNumber
	m.sequenced.Flush(op.RefSequenceNumber)
	m.tree = m.tree.Update(chunktree.FlushOutput{
		NewRootHandle:  op.Update.NewRoot,
		NewHandles:     op.Update.NewHandles,
		DeletedHandles: op.Update.DeletedHandles,
	})
	m.tree.Evict(m.cfg.CacheSizeHint)
	m.maybeEvict()

	if m.metric != nil {
		m.metric.FlushesApplied.Inc()
	}
	m.observers.emit(FlushedEvent{IsLeader: m.leader.IsLeader()})
	return nil
}

// reevaluateIfLeader is called after every non-Flush op application and
// after every local mutation (spec.md §4.4: "After handling any non-Flush
// op, if this client is leader, re-evaluate flush conditions").
func (m *Map[V]) reevaluateIfLeader(ctx context.Context) error {
	if !m.leader.IsLeader() {
		return nil
	}
	if m.flush != flushNone {
		return nil
	}
	if m.sequenced.UnflushedChangeCount() <= m.cfg.FlushThreshold {
		return nil
	}
	return m.startFlush(ctx)
}

// Compact performs a local compaction without going through a host ordering
// service at all: it collapses every unflushed change into the tree
// directly and resets SequencedState's modified bookkeeping, the way a
// single local writer with no peers (hivemapctl's flush subcommand) forces
// a flush in place of the distributed None->Uploading->AwaitingAck protocol
// startFlush/applyFlush implement for an attached, multi-client host.
func (m *Map[V]) Compact(ctx context.Context) error {
	updates, deletes := m.sequenced.FlushableChanges()
	out, err := m.tree.Flush(ctx, updates, deletes)
	if err != nil {
		return err
	}

	refSeq := uint64(m.host.LastSequenceNumber())
	m.tree = m.tree.Update(out)
	m.sequenced.Flush(refSeq)
	m.lastFlushRefSeq = refSeq
	if m.metric != nil {
		m.metric.FlushesApplied.Inc()
	}
	m.observers.emit(FlushedEvent{IsLeader: true})
	return nil
}

// startFlush performs the None -> Uploading -> AwaitingAck transition: it
// collapses SequencedState's unflushed ops, uploads every structurally new
// node (fanned out across the tree's upload pool, spec.md SPEC_FULL §4.4.b),
// and submits the resulting Flush op. A non-leader calling this is a
// programming error (spec.md §5: "a non-leader never starts a flush,
// enforced by assertion").
func (m *Map[V]) startFlush(ctx context.Context) error {
	if !m.leader.IsLeader() {
		return ErrNotLeader
	}

	m.flush = flushUploading
	m.observers.emit(StartFlushEvent{})
	if m.metric != nil {
		m.metric.FlushesStarted.Inc()
	}

	updates, deletes := m.sequenced.FlushableChanges()
	out, err := m.tree.Flush(ctx, updates, deletes)
	if err != nil {
		m.flush = flushNone
		if m.logger != nil {
			m.logger.Error("flush upload failed", "error", err)
		}
		return err
	}

	refSeq := uint64(m.host.LastSequenceNumber())
	op := FlushOp(FlushUpdate{
		NewRoot:        out.NewRootHandle,
		NewHandles:     out.NewHandles,
		DeletedHandles: out.DeletedHandles,
	}, refSeq)

	if err := m.host.SubmitLocalMessage(ctx, op); err != nil {
		m.flush = flushNone
		if m.logger != nil {
			m.logger.Error("flush op submission failed", "error", err)
		}
		return err
	}

	m.flush = flushAwaitingAck
	return nil
}
