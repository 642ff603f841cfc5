package variant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualIgnoresAlt(t *testing.T) {
	a := Desc{Chrom: "chr1", Pos: 100, Alt: "G"}
	b := Desc{Chrom: "chr1", Pos: 100, Alt: "T"}
	require.True(t, a.Equal(b))
}

func TestLessConsidersAlt(t *testing.T) {
	a := Desc{Chrom: "chr1", Pos: 100, Alt: "G"}
	b := Desc{Chrom: "chr1", Pos: 100, Alt: "T"}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}

func TestEmptyChromSortsLast(t *testing.T) {
	named := Desc{Chrom: "chr1", Pos: 1}
	empty := Desc{Chrom: "", Pos: 0}
	require.True(t, named.Less(empty))
	require.False(t, empty.Less(named))
}

func TestLessOrdersByPosWithinChrom(t *testing.T) {
	a := Desc{Chrom: "chr1", Pos: 100}
	b := Desc{Chrom: "chr1", Pos: 200}
	require.True(t, a.Less(b))
}

func TestGenotypePacking(t *testing.T) {
	g := MakeGenotype(AlleleRef, AlleleAlt)
	require.Equal(t, uint8(AlleleRef), Allele0(g))
	require.Equal(t, uint8(AlleleAlt), Allele1(g))
	require.True(t, Phased(g))

	h := MakeHaploidGenotype(AlleleMulti)
	require.Equal(t, uint8(AlleleMulti), Allele0(h))
	require.False(t, Phased(h))
}
