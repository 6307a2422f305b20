package sequenced

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheThenGetIsVisibleAsModified(t *testing.T) {
	s := New()
	s.Cache("k", []byte("v"))
	r := s.Get("k")
	require.True(t, r.Modified)
	require.Equal(t, []byte("v"), r.Value)
	require.Equal(t, 1, s.Size())
	require.Equal(t, 0, s.UnflushedChangeCount())
}

func TestSetRecordsOpAndMarksModified(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"), 1)
	require.Equal(t, 1, s.UnflushedChangeCount())
	require.True(t, s.IsModified("k"))
	r := s.Get("k")
	require.Equal(t, []byte("v"), r.Value)
}

func TestDeleteRemovesCacheEntryButStaysModified(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"), 1)
	s.Delete("k", 2)
	r := s.Get("k")
	require.True(t, r.Modified)
	require.True(t, r.IsDeleted)
	require.Equal(t, 0, s.Size())
}

func TestFlushableChangesCollapsesLastWriterWins(t *testing.T) {
	s := New()
	s.Set("k", []byte("v1"), 1)
	s.Set("k", []byte("v2"), 2)
	s.Delete("j", 3)
	s.Set("j", []byte("w"), 4)

	updates, deletes := s.FlushableChanges()
	require.Equal(t, []byte("v2"), updates["k"])
	require.Equal(t, []byte("w"), updates["j"])
	require.Empty(t, deletes)
}

func TestFlushPrunesOpsAtOrBelowRefSeq(t *testing.T) {
	s := New()
	s.Set("a", []byte("1"), 1)
	s.Set("b", []byte("2"), 2)
	s.Set("c", []byte("3"), 3)

	s.Flush(2)
	require.Equal(t, 1, s.UnflushedChangeCount())
	require.True(t, s.IsModified("c"))
	require.False(t, s.IsModified("a"))
	require.False(t, s.IsModified("b"))

	updates, _ := s.FlushableChanges()
	require.Equal(t, []byte("3"), updates["c"])
	require.NotContains(t, updates, "a")
}

func TestEvictSparesModifiedEntries(t *testing.T) {
	s := New()
	s.Set("a", []byte("1"), 1)
	s.Cache("b", []byte("2"))
	s.Cache("c", []byte("3"))
	require.Equal(t, 3, s.Size())

	s.Evict(0)
	// a is still an unflushed mutation and must survive.
	require.Equal(t, 1, s.Size())
	r := s.Get("a")
	require.Equal(t, []byte("1"), r.Value)
	require.False(t, s.IsModified("b"))
	require.False(t, s.IsModified("c"))
}

func TestEvictIsInsertionOrder(t *testing.T) {
	s := New()
	s.Cache("a", []byte("1"))
	s.Cache("b", []byte("2"))
	s.Cache("c", []byte("3"))

	s.Evict(2)
	require.Equal(t, 2, s.Size())
	require.False(t, s.Get("a").Modified)
	require.True(t, s.Get("b").Modified)
	require.True(t, s.Get("c").Modified)
}

func TestClearEmptiesEverything(t *testing.T) {
	s := New()
	s.Set("a", []byte("1"), 1)
	s.Cache("b", []byte("2"))
	s.Clear()
	require.Equal(t, 0, s.Size())
	require.Equal(t, 0, s.UnflushedChangeCount())
	require.False(t, s.Get("a").Modified)
}
