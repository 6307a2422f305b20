package partialmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/leader"
)

type stringCodec struct{}

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (stringCodec) Decode(b []byte) (string, error) { return string(b), nil }

type fakeHost struct {
	attached  bool
	seq       int64
	submitted []Op
}

func (f *fakeHost) SubmitLocalMessage(ctx context.Context, op Op) error {
	f.submitted = append(f.submitted, op)
	f.seq++
	return nil
}
func (f *fakeHost) LastSequenceNumber() int64        { return f.seq }
func (f *fakeHost) IsAttached() bool                 { return f.attached }
func (f *fakeHost) LeaderSignal() <-chan LeaderState { return nil }

func newTestMap(t *testing.T, attached bool) (*Map[string], *fakeHost) {
	t.Helper()
	host := &fakeHost{attached: attached}
	m, err := New[string](DefaultConfig(), blobstore.NewMemory(), host, stringCodec{})
	require.NoError(t, err)
	return m, host
}

func TestSetThenGetIsSynchronousRegardlessOfAttachState(t *testing.T) {
	ctx := context.Background()
	for _, attached := range []bool{true, false} {
		m, _ := newTestMap(t, attached)
		require.NoError(t, m.Set(ctx, "k", "v"))
		v, ok, err := m.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v", v)
	}
}

func TestInvalidKeyRejected(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMap(t, true)
	require.ErrorIs(t, m.Set(ctx, "", "v"), ErrInvalidKey)
	require.ErrorIs(t, m.Delete(ctx, ""), ErrInvalidKey)
	_, _, err := m.Get(ctx, "")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestAttachedSetSubmitsOpAndMasksUntilAcked(t *testing.T) {
	ctx := context.Background()
	m, host := newTestMap(t, true)
	require.NoError(t, m.Set(ctx, "k", "v"))
	require.Len(t, host.submitted, 1)
	require.Equal(t, KindSet, host.submitted[0].Kind)

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestDetachedSetSkipsOpSubmission(t *testing.T) {
	ctx := context.Background()
	m, host := newTestMap(t, false)
	require.NoError(t, m.Set(ctx, "k", "v"))
	require.Empty(t, host.submitted)

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestNonLeaderStartFlushIsRejected(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMap(t, true)
	err := m.startFlush(ctx)
	require.ErrorIs(t, err, ErrNotLeader)
}

func TestUnknownOpKindIsFatal(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMap(t, true)
	err := m.Apply(ctx, Op{Kind: OpKind("bogus")})
	require.ErrorIs(t, err, ErrUnknownOp)
}

// Mirrors spec.md §8 scenario 4: client A sets ("k","a"); client B sets
// ("k","b1") then ("k","b2"). After the server orders them A, B1, B2, both
// clients converge on "b2" and A's own earlier pending write does not mask
// B's later value once applied.
func TestScenarioFourConcurrentClientsConverge(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	hostA := &fakeHost{attached: true}
	hostB := &fakeHost{attached: true}
	a, err := New[string](DefaultConfig(), store, hostA, stringCodec{})
	require.NoError(t, err)
	b, err := New[string](DefaultConfig(), store, hostB, stringCodec{})
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "k", "a"))
	require.NoError(t, b.Set(ctx, "k", "b1"))
	require.NoError(t, b.Set(ctx, "k", "b2"))

	opA := hostA.submitted[0]
	opA.Seq, opA.Local = 1, true
	opB1 := hostB.submitted[0]
	opB1.Seq, opB1.Local = 2, true
	opB2 := hostB.submitted[1]
	opB2.Seq, opB2.Local = 3, true

	require.NoError(t, a.Apply(ctx, opA))
	opAForB := opA
	opAForB.Local = false
	require.NoError(t, b.Apply(ctx, opAForB))

	opB1ForA := opB1
	opB1ForA.Local = false
	require.NoError(t, a.Apply(ctx, opB1ForA))
	require.NoError(t, b.Apply(ctx, opB1))

	opB2ForA := opB2
	opB2ForA.Local = false
	require.NoError(t, a.Apply(ctx, opB2ForA))
	require.NoError(t, b.Apply(ctx, opB2))

	va, _, err := a.Get(ctx, "k")
	require.NoError(t, err)
	vb, _, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "b2", va)
	require.Equal(t, "b2", vb)
}

// Mirrors spec.md §8 scenario 5: A sets ("k","v"); B sets ("k","w"), clears,
// sets ("k","x"), clears again. Applied one at a time in server order, A's
// has("k") tracks the applied prefix: true, true, false, true, false.
func TestScenarioFiveClearInterleaving(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	hostA := &fakeHost{attached: true}
	a, err := New[string](DefaultConfig(), store, hostA, stringCodec{})
	require.NoError(t, err)

	ops := []Op{
		SetOp("k", []byte("v")),
		SetOp("k", []byte("w")),
		ClearOp(),
		SetOp("k", []byte("x")),
		ClearOp(),
	}
	want := []bool{true, true, false, true, false}

	for i, op := range ops {
		op.Seq = int64(i + 1)
		require.NoError(t, a.Apply(ctx, op))
		has, err := a.Has(ctx, "k")
		require.NoError(t, err)
		require.Equalf(t, want[i], has, "step %d", i)
	}
}

// Mirrors spec.md §8 scenario 6: a leader's second flush attempt is
// suppressed while the first is in flight, and a stale split-brain flush
// (lower ref_seq) arriving after completion is ignored.
func TestScenarioSixFlushSuppressionAndStaleFilter(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	host := &fakeHost{attached: true}
	m, err := New[string](DefaultConfig(), store, host, stringCodec{})
	require.NoError(t, err)
	require.NoError(t, m.ApplyLeaderSignal(ctx, leader.Promoted))
	host.seq = 10 // simulate ops already sequenced ahead of this flush

	require.NoError(t, m.startFlush(ctx))
	require.Equal(t, flushUploading, m.flush)

	// A second attempt while the first is in flight must not be allowed to
	// proceed past the gate; the controller itself only calls startFlush
	// from reevaluateIfLeader, which checks flush != flushNone.
	require.NoError(t, m.reevaluateIfLeader(ctx))
	require.Equal(t, flushUploading, m.flush)

	completing := host.submitted[len(host.submitted)-1]
	completing.Seq = host.seq
	completing.Local = true
	require.NoError(t, m.Apply(ctx, completing))
	require.Equal(t, flushNone, m.flush)
	require.Equal(t, completing.RefSequenceNumber, m.lastFlushRefSeq)

	stale := completing
	stale.RefSequenceNumber = completing.RefSequenceNumber - 1
	stale.Local = false
	require.NoError(t, m.Apply(ctx, stale))
	require.Equal(t, completing.RefSequenceNumber, m.lastFlushRefSeq)
}

func TestGetAttachSummaryRoundTripsThroughFromSummary(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	host := &fakeHost{attached: false}
	m, err := New[string](DefaultConfig(), store, host, stringCodec{})
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, "a", "1"))
	require.NoError(t, m.Set(ctx, "b", "2"))

	summary, err := m.GetAttachSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary.Inline)

	loaded, err := FromSummary[string](DefaultConfig(), store, host, stringCodec{}, summary)
	require.NoError(t, err)
	v, ok, err := loaded.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)
}
