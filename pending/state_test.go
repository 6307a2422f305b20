package pending

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetThenGetIsImmediatelyVisible(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"))
	r := s.Get("k")
	require.True(t, r.Modified)
	require.False(t, r.IsDeleted)
	require.Equal(t, []byte("v"), r.Value)
	require.Equal(t, 1, s.Size())
}

func TestDeleteMasksPriorSet(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"))
	s.Delete("k")
	r := s.Get("k")
	require.True(t, r.Modified)
	require.True(t, r.IsDeleted)
}

func TestAckModifyEvictsOnceFullyAcked(t *testing.T) {
	s := New()
	s.Set("k", []byte("v1"))
	s.Set("k", []byte("v2"))
	require.Equal(t, 1, s.Size())

	s.AckModify("k")
	// One ack still owed (two Set calls => two pendingAcks).
	require.Equal(t, 1, s.Size())
	r := s.Get("k")
	require.True(t, r.Modified)

	s.AckModify("k")
	require.Equal(t, 0, s.Size())
	r = s.Get("k")
	require.False(t, r.Modified)
}

func TestClearDominatesEarlierSetsUntilOverwritten(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"))
	s.Clear()
	r := s.Get("k")
	require.True(t, r.IsDeleted)

	s.Set("k", []byte("v2"))
	r = s.Get("k")
	require.False(t, r.IsDeleted)
	require.Equal(t, []byte("v2"), r.Value)
}

func TestClearDominatesUntouchedKeysUntilAcked(t *testing.T) {
	s := New()
	s.Clear()
	r := s.Get("anything")
	require.True(t, r.Modified)
	require.True(t, r.IsDeleted)

	s.AckClear()
	r = s.Get("anything")
	require.False(t, r.Modified)
	require.False(t, r.IsDeleted)
}

// Mirrors spec.md §8 scenario 5: A sets ("k","v"); B sets ("k","w1") then
// issues clear, sets ("k","x"), issues clear again. Local PendingState
// tracks each step of B's own causal view.
func TestScenarioFiveLocalCausalView(t *testing.T) {
	b := New()
	b.Set("k", []byte("w1"))
	require.True(t, b.Get("k").Modified)
	require.False(t, b.Get("k").IsDeleted)

	b.Clear()
	require.True(t, b.Get("k").IsDeleted)

	b.Set("k", []byte("x"))
	require.False(t, b.Get("k").IsDeleted)
	require.Equal(t, []byte("x"), b.Get("k").Value)

	b.Clear()
	require.True(t, b.Get("k").IsDeleted)
}
