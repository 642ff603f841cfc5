package gtfile

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/refresh-bio/gtshark/internal/variant"
	"github.com/stretchr/testify/require"
)

func TestTrivialSingleVariantRoundtrip(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	base := filepath.Join(dir, "db")

	w, err := NewWriter(ctx, base, []string{"A", "B"}, 2, 10)
	require.NoError(t, err)
	w.SetHeader([]byte("##fileformat=VCFv4.2\n"))

	desc := variant.Desc{Chrom: "chr1", Pos: 100, ID: ".", Ref: "A", Alt: "G", Qual: ".", Filter: "PASS", Info: "."}
	genotypes := []variant.GenotypeByte{
		variant.MakeGenotype(variant.AlleleRef, variant.AlleleAlt),
		variant.MakeGenotype(variant.AlleleAlt, variant.AlleleRef),
	}
	require.NoError(t, w.SetVariant(desc, genotypes))
	require.NoError(t, w.Close())

	r, err := Open(ctx, base)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, r.Samples)
	require.Equal(t, uint32(1), r.NoVariants)

	gotDesc, gotGT, ok, err := r.GetVariant()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "chr1", gotDesc.Chrom)
	require.EqualValues(t, 100, gotDesc.Pos)
	require.Equal(t, variant.AlleleRef, int(variant.Allele0(gotGT[0])))
	require.Equal(t, variant.AlleleAlt, int(variant.Allele1(gotGT[0])))
	require.Equal(t, variant.AlleleAlt, int(variant.Allele0(gotGT[1])))
	require.Equal(t, variant.AlleleRef, int(variant.Allele1(gotGT[1])))

	_, _, ok, err = r.GetVariant()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, r.Close())
}

func TestNeglectLimitStability(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	base := filepath.Join(dir, "db")

	const nSamples = 50
	samples := make([]string, nSamples)
	for i := range samples {
		samples[i] = "S"
	}
	w, err := NewWriter(ctx, base, samples, 2, 10)
	require.NoError(t, err)

	homRef := make([]variant.GenotypeByte, nSamples)
	for i := range homRef {
		homRef[i] = variant.MakeGenotype(variant.AlleleRef, variant.AlleleRef)
	}
	for i := 0; i < 1000; i++ {
		require.NoError(t, w.SetVariant(variant.Desc{Chrom: "chr1", Pos: int64(i + 1)}, homRef))
	}
	poly := make([]variant.GenotypeByte, nSamples)
	copy(poly, homRef)
	poly[0] = variant.MakeGenotype(variant.AlleleAlt, variant.AlleleAlt)
	require.NoError(t, w.SetVariant(variant.Desc{Chrom: "chr1", Pos: 1001}, poly))
	require.NoError(t, w.Close())

	r, err := Open(ctx, base)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		_, gt, ok, err := r.GetVariant()
		require.NoError(t, err)
		require.True(t, ok)
		for _, g := range gt {
			require.Equal(t, variant.AlleleRef, int(variant.Allele0(g)))
			require.Equal(t, variant.AlleleRef, int(variant.Allele1(g)))
		}
	}
	_, gt, ok, err := r.GetVariant()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, variant.AlleleAlt, int(variant.Allele0(gt[0])))
	require.NoError(t, r.Close())
}

func TestCorruptDigestDetected(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	base := filepath.Join(dir, "db")

	w, err := NewWriter(ctx, base, []string{"A"}, 1, 10)
	require.NoError(t, err)
	require.NoError(t, w.SetVariant(variant.Desc{Chrom: "chr1", Pos: 1}, []variant.GenotypeByte{variant.MakeHaploidGenotype(variant.AlleleRef)}))
	require.NoError(t, w.Close())

	dbPath, _ := Paths(base)
	raw, err := readWholeFile(dbPath)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, writeWholeFile(dbPath, raw))

	_, err = Open(ctx, base)
	require.Error(t, err)
}
