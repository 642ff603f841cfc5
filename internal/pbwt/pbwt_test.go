package pbwt

import (
	"math/rand"

	"testing"

	"github.com/stretchr/testify/require"
)

func randomColumn(n uint32, seed int64) []uint8 {
	r := rand.New(rand.NewSource(seed))
	col := make([]uint8, n)
	for i := range col {
		col[i] = uint8(r.Intn(Sigma))
	}
	return col
}

func sumLengths(runs []Run) uint32 {
	var total uint32
	for _, r := range runs {
		total += r.Length
	}
	return total
}

func TestEncodeDecodeIdentity(t *testing.T) {
	const n = 500
	enc := New()
	enc.StartForward(n, 10)
	dec := New()
	dec.StartReverse(n, 10)

	for v := 0; v < 20; v++ {
		col := randomColumn(n, int64(v))
		runs := enc.Encode(col)
		require.Equal(t, n, sumLengths(runs))

		wireRuns := append([]Run(nil), runs...)
		wireRuns[len(wireRuns)-1].Length = 0
		// Decode expects the final run's length already restored, as
		// the DB reader does from the known haplotype count.
		wireRuns[len(wireRuns)-1].Length = n - sumLengths(wireRuns)
		got := dec.Decode(wireRuns)
		require.Equal(t, col, got)
	}
}

func TestNeglectLimitKeepsPermutationStable(t *testing.T) {
	const n = 200
	eng := New()
	eng.StartForward(n, 10)

	mono := make([]uint8, n)
	basePerm := append([]uint32(nil), eng.permPrev...)
	for i := 0; i < 50; i++ {
		eng.Encode(mono)
		require.Equal(t, basePerm, eng.permPrev)
	}
}

func TestRevertLaw(t *testing.T) {
	const n = 300
	eng := New()
	eng.StartForward(n, 0) // neglect_limit 0: always commit
	col := randomColumn(n, 7)
	runs := eng.Encode(col)

	// tracker starts from the same identity permutation eng had before
	// Encode committed, so TrackItem below sees the pre-commit state.
	tracker := New()
	tracker.StartForward(n, 0)
	for pos := uint32(0); pos < n; pos++ {
		sym, newPos := tracker.TrackItem(runs, pos)
		require.Equal(t, col[tracker_permPrevAt(tracker, pos)], sym)
		revPos, ok := tracker.RevertDecode(newPos, runs, sym)
		require.True(t, ok)
		require.Equal(t, pos, revPos)
	}
}

func tracker_permPrevAt(e *Engine, pos uint32) uint32 {
	return e.permPrev[pos]
}

func TestEstimateConsistencyWithTrackItem(t *testing.T) {
	const n = 150
	eng := New()
	eng.StartForward(n, 0)
	col := randomColumn(n, 99)
	runs := eng.Encode(col)

	tr := New()
	tr.StartForward(n, 0)
	for pos := uint32(0); pos < n; pos++ {
		sym, trackNew := tr.TrackItem(runs, pos)
		_, estNew := tr.EstimateValue(runs, pos, sym)
		require.Equal(t, trackNew, estNew)
	}
}
