package blobstore

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/jenn-le/hivemap/handle"
)

// chunkPrefix and namedPrefix separate the content-addressed chunk
// namespace from the small named-blob namespace (just "hive" today) within
// one pebble keyspace, mirroring iavlx.CosmosDBStore's practice of
// prefixing keys with a tag byte rather than using prefix DBs throughout.
const (
	chunkPrefix = 'c'
	namedPrefix = 'n'
)

// Pebble is a content-addressed Store backed by a single *pebble.DB.
// Content addressing removes the leaf/branch key-space split that
// iavlx.CosmosDBStore needs (it shards by node kind because its NodeKey is
// version/sequence-assigned, not content-hashed); one keyspace suffices
// here.
type Pebble struct {
	db *pebble.DB
}

// NewPebble opens (or creates) a pebble-backed blob store at dir.
func NewPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening pebble store at %s", dir)
	}
	return &Pebble{db: db}, nil
}

// Close releases the underlying pebble handle.
func (p *Pebble) Close() error {
	return p.db.Close()
}

func chunkKey(h handle.Handle) []byte {
	key := make([]byte, 1+handle.Size)
	key[0] = chunkPrefix
	copy(key[1:], h[:])
	return key
}

func namedKey(name string) []byte {
	key := make([]byte, 1+len(name))
	key[0] = namedPrefix
	copy(key[1:], name)
	return key
}

func (p *Pebble) Upload(_ context.Context, bytes []byte) (handle.Handle, error) {
	h := handle.Of(bytes)
	if err := p.db.Set(chunkKey(h), bytes, pebble.Sync); err != nil {
		return handle.Handle{}, errors.Wrapf(err, "uploading blob %s", h)
	}
	return h, nil
}

func (p *Pebble) Resolve(_ context.Context, h handle.Handle) ([]byte, error) {
	val, closer, err := p.db.Get(chunkKey(h))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "resolving blob %s", h)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (p *Pebble) PutNamed(_ context.Context, name string, bytes []byte) error {
	if err := p.db.Set(namedKey(name), bytes, pebble.Sync); err != nil {
		return errors.Wrapf(err, "writing named blob %q", name)
	}
	return nil
}

func (p *Pebble) GetNamed(_ context.Context, name string) ([]byte, error) {
	val, closer, err := p.db.Get(namedKey(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading named blob %q", name)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

var (
	_ Store      = (*Pebble)(nil)
	_ NamedStore = (*Pebble)(nil)
)
