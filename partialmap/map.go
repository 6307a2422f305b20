package partialmap

import (
	"context"
	"runtime"

	"cosmossdk.io/log"
	"github.com/alitto/pond/v2"
	"github.com/cockroachdb/errors"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/chunktree"
	"github.com/jenn-le/hivemap/handle"
	"github.com/jenn-le/hivemap/internal/logging"
	"github.com/jenn-le/hivemap/internal/metrics"
	"github.com/jenn-le/hivemap/leader"
	"github.com/jenn-le/hivemap/pending"
	"github.com/jenn-le/hivemap/sequenced"
)

// detachedSeq is the synthetic sequence number spec.md §4.4 Writes assigns
// to mutations applied while detached. It is zero, the lowest possible
// sequence number, so every flush (whose reference sequence number is at
// least zero) prunes the detached ops from SequencedState.
const detachedSeq = uint64(0)

// Config holds the tunables from spec.md §6.
type Config struct {
	Order          int
	CacheSizeHint  int
	FlushThreshold int
}

// DefaultConfig returns spec.md §6's default tunables.
func DefaultConfig() Config {
	return Config{
		Order:          chunktree.DefaultOrder,
		CacheSizeHint:  5000,
		FlushThreshold: 1000,
	}
}

type flushState int

const (
	flushNone flushState = iota
	flushUploading
	flushAwaitingAck
)

// Map is the PartialMap controller from spec.md §4.4: the public
// get/has/set/delete/clear surface, op submission/application, compaction
// scheduling, and summary production, generalized over a user value type V
// via a Codec.
type Map[V any] struct {
	cfg    Config
	store  blobstore.Store
	host   Host
	codec  Codec[V]
	logger log.Logger
	metric *metrics.Metrics
	pool   pond.Pool

	pending   *pending.State
	sequenced *sequenced.State
	tree      *chunktree.ChunkedBTree
	leader    *leader.Tracker

	observers observerList

	flush           flushState
	lastFlushRefSeq uint64
}

// MapOption configures a Map at construction time.
type MapOption[V any] func(*Map[V])

// WithLogger overrides the default logger, an internal/logging.Wrapper that
// writes text to os.Stderr at info level.
func WithLogger[V any](l log.Logger) MapOption[V] {
	return func(m *Map[V]) { m.logger = l }
}

// WithMetrics attaches a prometheus-backed metric set.
func WithMetrics[V any](ms *metrics.Metrics) MapOption[V] {
	return func(m *Map[V]) { m.metric = ms }
}

// WithObserver registers fn to receive every event the map emits.
func WithObserver[V any](fn Observer) MapOption[V] {
	return func(m *Map[V]) { m.observers.subscribe(fn) }
}

// New creates an empty Map of the given order against store, ready to
// attach-summary-load from an existing hive or start fresh.
func New[V any](cfg Config, store blobstore.Store, host Host, codec Codec[V], opts ...MapOption[V]) (*Map[V], error) {
	if cfg.Order < 2 {
		cfg.Order = chunktree.DefaultOrder
	}
	if cfg.CacheSizeHint <= 0 {
		cfg.CacheSizeHint = DefaultConfig().CacheSizeHint
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = DefaultConfig().FlushThreshold
	}

	pool := pond.NewPool(runtime.NumCPU())
	tree, err := chunktree.New(cfg.Order, store, chunktree.WithUploadPool(pool))
	if err != nil {
		return nil, err
	}

	m := &Map[V]{
		cfg:       cfg,
		store:     store,
		host:      host,
		codec:     codec,
		logger:    logging.NewText(0),
		pool:      pool,
		pending:   pending.New(),
		sequenced: sequenced.New(),
		tree:      tree,
		leader:    leader.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Get resolves key, consulting PendingState, then SequencedState, then the
// tree, caching and evicting on a tree hit (spec.md §4.4 Reads).
func (m *Map[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if key == "" {
		return zero, false, ErrInvalidKey
	}

	if r := m.pending.Get(key); r.Modified {
		if r.IsDeleted {
			return zero, false, nil
		}
		v, err := m.codec.Decode(r.Value)
		return v, true, err
	}

	if r := m.sequenced.Get(key); r.Modified {
		if r.IsDeleted {
			return zero, false, nil
		}
		v, err := m.codec.Decode(r.Value)
		return v, true, err
	}

	raw, err := m.tree.Get(ctx, []byte(key))
	if err != nil {
		return zero, false, err
	}
	if raw == nil {
		return zero, false, nil
	}
	m.sequenced.Cache(key, raw)
	m.maybeEvict()

	v, err := m.codec.Decode(raw)
	return v, true, err
}

// Has reports whether key is present, consulting the tree directly rather
// than stopping at the pending/cache view (spec.md §9's resolution of the
// last open question: has must be as authoritative as get).
func (m *Map[V]) Has(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	if r := m.pending.Get(key); r.Modified {
		return !r.IsDeleted, nil
	}
	if r := m.sequenced.Get(key); r.Modified {
		return !r.IsDeleted, nil
	}
	return m.tree.Has(ctx, []byte(key))
}

// Set records key=value. If attached, the write goes through PendingState
// and a Set op is submitted; if detached, it lands directly in
// SequencedState under the synthetic detached sequence number. Either path
// emits ValueChanged(key, local=true) immediately (spec.md §4.4 Writes).
func (m *Map[V]) Set(ctx context.Context, key string, value V) error {
	if key == "" {
		return ErrInvalidKey
	}
	encoded, err := m.codec.Encode(value)
	if err != nil {
		return errors.Wrap(err, "partialmap: encode value")
	}

	if m.host.IsAttached() {
		m.pending.Set(key, encoded)
		op := SetOp(key, encoded)
		if err := m.submitLocal(ctx, op); err != nil {
			return err
		}
	} else {
		m.sequenced.Set(key, encoded, detachedSeq)
	}

	m.observers.emit(ValueChanged{Key: key, Local: true})
	return m.reevaluateIfLeader(ctx)
}

// Delete removes key, mirroring Set's attach-state handling.
func (m *Map[V]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if m.host.IsAttached() {
		m.pending.Delete(key)
		op := DeleteOp(key)
		if err := m.submitLocal(ctx, op); err != nil {
			return err
		}
	} else {
		m.sequenced.Delete(key, detachedSeq)
	}

	m.observers.emit(ValueChanged{Key: key, Local: true})
	return m.reevaluateIfLeader(ctx)
}

// Clear empties the map. If attached, records a pending clear and submits
// a Clear op; if detached, replaces the tree with an empty one directly.
func (m *Map[V]) Clear(ctx context.Context) error {
	if m.host.IsAttached() {
		m.pending.Clear()
		op := ClearOp()
		if err := m.submitLocal(ctx, op); err != nil {
			return err
		}
	} else {
		m.tree = m.tree.Clear()
		m.sequenced.Clear()
	}

	m.observers.emit(Cleared{Local: true})
	return m.reevaluateIfLeader(ctx)
}

func (m *Map[V]) submitLocal(ctx context.Context, op Op) error {
	if m.metric != nil {
		m.metric.OpsSubmitted.Inc()
	}
	return m.host.SubmitLocalMessage(ctx, op)
}

// Apply applies one sequenced op to local state, per spec.md §4.4 Op
// application. After any non-Flush op, if this client is leader, flush
// conditions are re-evaluated.
func (m *Map[V]) Apply(ctx context.Context, op Op) error {
	switch op.Kind {
	case KindSet:
		m.sequenced.Set(op.Key, op.Value, uint64(op.Seq))
		if op.Local {
			m.pending.AckModify(op.Key)
		} else {
			m.observers.emit(ValueChanged{Key: op.Key, Local: false})
		}
		if m.metric != nil {
			m.metric.OpsApplied.WithLabelValues("set").Inc()
		}
		return m.reevaluateIfLeader(ctx)

	case KindDelete:
		m.sequenced.Delete(op.Key, uint64(op.Seq))
		if op.Local {
			m.pending.AckModify(op.Key)
		} else {
			m.observers.emit(ValueChanged{Key: op.Key, Local: false})
		}
		if m.metric != nil {
			m.metric.OpsApplied.WithLabelValues("delete").Inc()
		}
		return m.reevaluateIfLeader(ctx)

	case KindClear:
		m.tree = m.tree.Clear()
		m.sequenced.Clear()
		if op.Local {
			m.pending.AckClear()
		} else {
			m.observers.emit(Cleared{Local: false})
		}
		if m.metric != nil {
			m.metric.OpsApplied.WithLabelValues("clear").Inc()
		}
		return m.reevaluateIfLeader(ctx)

	case KindFlush:
		return m.applyFlush(op)

	default:
		return errors.WithDetailf(ErrUnknownOp, "kind=%q", op.Kind)
	}
}

// maybeEvict implements spec.md §4.5: a cache insertion that pushes the
// working set past cache_size_hint, with more than half the hint evictable
// (non-modified), triggers freeing roughly half the hint.
func (m *Map[V]) maybeEvict() {
	workingSet := m.sequenced.Size() + m.tree.WorkingSetSize()
	if workingSet <= m.cfg.CacheSizeHint {
		return
	}
	evictable := m.sequenced.Size() - m.sequenced.UnflushedChangeCount()
	if evictable <= m.cfg.CacheSizeHint/2 {
		return
	}

	freeGoal := m.cfg.CacheSizeHint / 2
	target := m.sequenced.Size() - freeGoal
	if target < 0 {
		target = 0
	}
	m.sequenced.Evict(target)
	m.tree.Evict(m.cfg.CacheSizeHint)

	if m.metric != nil {
		m.metric.WorkingSetSize.Set(float64(m.sequenced.Size() + m.tree.WorkingSetSize()))
		m.metric.UnflushedChange.Set(float64(m.sequenced.UnflushedChangeCount()))
	}
}

// AllHandles exposes the tree's reachable handles, used by GetGCData.
func (m *Map[V]) AllHandles() []handle.Handle {
	return m.tree.AllHandles()
}
