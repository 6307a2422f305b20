package chunktree

import (
	"context"
	_ "embed"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/handle"
)

//go:embed testdata/words.txt
var wordsFixture string

var testWords = strings.Fields(wordsFixture)

func TestSetGetBasic(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	tree, err := New(3, store)
	require.NoError(t, err)

	var deleted []handle.Handle
	tree, err = tree.Set(ctx, []byte("a"), []byte("1"), &deleted)
	require.NoError(t, err)
	tree, err = tree.Set(ctx, []byte("b"), []byte("2"), &deleted)
	require.NoError(t, err)
	tree, err = tree.Set(ctx, []byte("c"), []byte("3"), &deleted)
	require.NoError(t, err)

	v, err := tree.Get(ctx, []byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)

	// Order 3: a leaf splits once it would hold three keys, so the root
	// became an interior node when "c" went in; after the fourth key it is
	// still an interior node with exactly one separator key.
	tree, err = tree.Set(ctx, []byte("d"), []byte("4"), &deleted)
	require.NoError(t, err)
	require.False(t, tree.root.resolved.leaf)
	require.Len(t, tree.root.resolved.keys, 1)
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	tree, err := New(3, store)
	require.NoError(t, err)

	var deleted []handle.Handle
	tree, err = tree.Set(ctx, []byte("a"), []byte("1"), &deleted)
	require.NoError(t, err)

	before := tree.WorkingSetSize()
	same, err := tree.Delete(ctx, []byte("zzz"), &deleted)
	require.NoError(t, err)
	require.Same(t, tree, same)
	require.Equal(t, before, same.WorkingSetSize())
}

func TestWordList(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	tree, err := New(8, store)
	require.NoError(t, err)

	var deleted []handle.Handle
	for _, w := range testWords {
		tree, err = tree.Set(ctx, []byte(w), []byte(w), &deleted)
		require.NoError(t, err)
	}
	for _, w := range testWords {
		v, err := tree.Get(ctx, []byte(w))
		require.NoError(t, err)
		require.Equal(t, []byte(w), v)
	}
	for _, w := range testWords {
		tree, err = tree.Delete(ctx, []byte(w), &deleted)
		require.NoError(t, err)
	}
	for _, w := range testWords {
		has, err := tree.Has(ctx, []byte(w))
		require.NoError(t, err)
		require.False(t, has)
	}
}

func TestFlushUpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	tree, err := New(16, store)
	require.NoError(t, err)

	updates := make(map[string][]byte)
	for i := 0; i < 1000; i++ {
		key := strconv.Itoa(i)
		updates[key] = []byte(key)
	}

	require.Equal(t, 0, tree.WorkingSetSize())
	out, err := tree.Flush(ctx, updates, nil)
	require.NoError(t, err)
	tree = tree.Update(out)

	for i := 0; i < 1000; i++ {
		key := strconv.Itoa(i)
		v, err := tree.Get(ctx, []byte(key))
		require.NoError(t, err)
		require.Equal(t, []byte(key), v)
	}
	require.Equal(t, 1000, tree.WorkingSetSize())
}

func TestUpdateHandleSetAlgebra(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	tree, err := New(4, store)
	require.NoError(t, err)

	out1, err := tree.Flush(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, nil)
	require.NoError(t, err)
	tree = tree.Update(out1)
	before := handle.NewSet(tree.AllHandles()...)

	out2, err := tree.Flush(ctx, map[string][]byte{"c": []byte("3")}, nil)
	require.NoError(t, err)
	tree = tree.Update(out2)

	expected := before.Clone()
	for _, h := range out2.NewHandles {
		expected.Add(h)
	}
	for _, h := range out2.DeletedHandles {
		expected.Remove(h)
	}

	require.ElementsMatch(t, expected.All(), tree.AllHandles())
}

func TestEvictSparesUnpersistedContent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	tree, err := New(4, store)
	require.NoError(t, err)

	out, err := tree.Flush(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}, nil)
	require.NoError(t, err)
	tree = tree.Update(out)

	// Reading back in materializes the leaf; evicting with a generous
	// budget should drop it again since it is fully persisted.
	_, err = tree.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.Greater(t, tree.WorkingSetSize(), 0)
	tree.Evict(1000)
	require.Equal(t, 0, tree.WorkingSetSize())

	// A freshly-set (unpersisted) key must survive eviction.
	var deleted []handle.Handle
	tree, err = tree.Set(ctx, []byte("d"), []byte("4"), &deleted)
	require.NoError(t, err)
	tree.Evict(1000)
	v, err := tree.Get(ctx, []byte("d"))
	require.NoError(t, err)
	require.Equal(t, []byte("4"), v)
}

func TestInvalidOrder(t *testing.T) {
	_, err := New(1, blobstore.NewMemory())
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestFlushSyncPacksInlineLeaf(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	tree, err := New(32, store)
	require.NoError(t, err)

	inline, err := tree.FlushSync(ctx, map[string][]byte{"x": []byte("1"), "y": []byte("2")}, nil)
	require.NoError(t, err)
	require.Len(t, inline.Keys, 2)

	tree2, err := FromInline(32, store, inline)
	require.NoError(t, err)
	v, err := tree2.Get(ctx, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}
