package partialmap

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/chunktree"
	"github.com/jenn-le/hivemap/handle"
)

// ErrNamedBlobsUnsupported is returned by PersistSummary/Load when store
// does not implement blobstore.NamedStore.
var ErrNamedBlobsUnsupported = errors.New("partialmap: store does not support named blobs")

// SummaryData is the wire shape of the single named "hive" summary blob
// from spec.md §6: either a persisted root handle plus the handle set
// reachable from it, or an inline leaf for an empty/tiny attach-time map.
type SummaryData struct {
	Order   int                   `json:"order"`
	Root    *handle.Handle        `json:"root,omitempty"`
	Inline  *chunktree.InlineLeaf `json:"inline_leaf,omitempty"`
	Handles []handle.Handle       `json:"handles,omitempty"`
}

// GetAttachSummary packs the map's current unflushed state into an inline
// leaf without touching the blob store, for channel-attach time when the
// map is guaranteed to hold few entries (spec.md §4.1 flush_sync, §6
// get_attach_summary).
func (m *Map[V]) GetAttachSummary(ctx context.Context) (SummaryData, error) {
	updates, deletes := m.sequenced.FlushableChanges()
	inline, err := m.tree.FlushSync(ctx, updates, deletes)
	if err != nil {
		return SummaryData{}, err
	}
	return SummaryData{Order: m.cfg.Order, Inline: &inline}, nil
}

// Summarize packs the map's currently persisted root (if any) and its
// reachable handle set into a SummaryData, without performing a flush
// itself (spec.md §6 summarize).
func (m *Map[V]) Summarize() SummaryData {
	data := SummaryData{Order: m.cfg.Order, Handles: m.tree.AllHandles()}
	if h, ok := m.tree.RootHandle(); ok {
		data.Root = &h
	}
	return data
}

// PersistSummary writes Summarize()'s result to the store's named "hive"
// blob, for hosts that back the map with a blobstore.NamedStore.
func (m *Map[V]) PersistSummary(ctx context.Context) error {
	ns, ok := m.store.(blobstore.NamedStore)
	if !ok {
		return ErrNamedBlobsUnsupported
	}
	bytes, err := json.Marshal(m.Summarize())
	if err != nil {
		return errors.Wrap(err, "partialmap: marshal summary")
	}
	return ns.PutNamed(ctx, blobstore.SummaryBlobName, bytes)
}

// GetGCData returns every handle the map currently considers reachable, the
// GC root set a garbage collector sweeps the blob store against (spec.md §6
// get_gc_data).
func (m *Map[V]) GetGCData() *handle.Set {
	return m.tree.HandleSet()
}

// FromSummary hydrates a Map directly from a SummaryData value, the
// counterpart to GetAttachSummary/Summarize for hosts that transmit the
// summary out of band (e.g. attach-time channel state) rather than through
// a named blob.
func FromSummary[V any](cfg Config, store blobstore.Store, host Host, codec Codec[V], data SummaryData, opts ...MapOption[V]) (*Map[V], error) {
	if data.Order >= 2 {
		cfg.Order = data.Order
	}
	m, err := New(cfg, store, host, codec, opts...)
	if err != nil {
		return nil, err
	}

	switch {
	case data.Inline != nil:
		tree, err := chunktree.FromInline(cfg.Order, store, *data.Inline, chunktree.WithUploadPool(m.pool))
		if err != nil {
			return nil, err
		}
		m.tree = tree
	case data.Root != nil:
		tree, err := chunktree.FromRoot(cfg.Order, store, *data.Root, handle.NewSet(data.Handles...), chunktree.WithUploadPool(m.pool))
		if err != nil {
			return nil, err
		}
		m.tree = tree
	}

	return m, nil
}

// Load hydrates a Map from the store's named "hive" summary blob, or
// returns a fresh empty Map if none exists yet.
func Load[V any](ctx context.Context, cfg Config, store blobstore.Store, host Host, codec Codec[V], opts ...MapOption[V]) (*Map[V], error) {
	ns, ok := store.(blobstore.NamedStore)
	if !ok {
		return nil, ErrNamedBlobsUnsupported
	}

	raw, err := ns.GetNamed(ctx, blobstore.SummaryBlobName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return New(cfg, store, host, codec, opts...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "partialmap: load summary")
	}

	var data SummaryData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "partialmap: unmarshal summary")
	}

	return FromSummary(cfg, store, host, codec, data, opts...)
}
