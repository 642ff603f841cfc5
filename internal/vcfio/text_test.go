package vcfio

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/refresh-bio/gtshark/internal/variant"
	"github.com/stretchr/testify/require"
)

func TestDiploidRoundtrip(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "sample.vcf")

	w, err := CreateForWriting(ctx, path, []string{"A", "B"}, 2, false, 0)
	require.NoError(t, err)

	desc := variant.Desc{Chrom: "chr1", Pos: 100, ID: ".", Ref: "A", Alt: "G", Qual: ".", Filter: "PASS", Info: "."}
	genotypes := []variant.GenotypeByte{
		variant.MakeGenotype(variant.AlleleRef, variant.AlleleAlt),
		variant.MakeGenotype(variant.AlleleAlt, variant.AlleleRef) &^ variant.PhasedBit,
	}
	require.NoError(t, w.SetVariant(ctx, desc, genotypes))
	require.NoError(t, w.Close(ctx))

	r, err := OpenForReading(ctx, path, false)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, r.GetSamplesList())
	require.Equal(t, 2, r.Ploidy())

	gotDesc, gotGT, ok, err := r.GetVariant(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, desc.Equal(gotDesc))
	require.Equal(t, "G", gotDesc.Alt)
	require.Equal(t, variant.AlleleRef, int(variant.Allele0(gotGT[0])))
	require.Equal(t, variant.AlleleAlt, int(variant.Allele1(gotGT[0])))
	require.True(t, variant.Phased(gotGT[0]))
	require.Equal(t, variant.AlleleAlt, int(variant.Allele0(gotGT[1])))
	require.Equal(t, variant.AlleleRef, int(variant.Allele1(gotGT[1])))
	require.False(t, variant.Phased(gotGT[1]))

	_, _, ok, err = r.GetVariant(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, r.Close(ctx))
}

func TestHaploidAndBlockContainerRoundtrip(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "sample.gtbc")

	w, err := CreateForWriting(ctx, path, []string{"S"}, 1, true, 6)
	require.NoError(t, err)
	desc := variant.Desc{Chrom: "chrX", Pos: 42}
	require.NoError(t, w.SetVariant(ctx, desc, []variant.GenotypeByte{variant.MakeHaploidGenotype(variant.AlleleAlt)}))
	require.NoError(t, w.Close(ctx))

	r, err := OpenForReading(ctx, path, true)
	require.NoError(t, err)
	gotDesc, gotGT, ok, err := r.GetVariant(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, desc.Equal(gotDesc))
	require.Equal(t, variant.AlleleAlt, int(variant.Allele0(gotGT[0])))
	require.NoError(t, r.Close(ctx))
}

func TestSniffPloidy(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	diploidPath := filepath.Join(dir, "diploid.vcf")
	w, err := CreateForWriting(ctx, diploidPath, []string{"A"}, 2, false, 0)
	require.NoError(t, err)
	require.NoError(t, w.SetVariant(ctx, variant.Desc{Chrom: "chr1", Pos: 1}, []variant.GenotypeByte{variant.MakeGenotype(0, 1)}))
	require.NoError(t, w.Close(ctx))
	p, err := SniffPloidy(ctx, diploidPath)
	require.NoError(t, err)
	require.Equal(t, 2, p)

	haploidPath := filepath.Join(dir, "haploid.vcf")
	w, err = CreateForWriting(ctx, haploidPath, []string{"A"}, 1, false, 0)
	require.NoError(t, err)
	require.NoError(t, w.SetVariant(ctx, variant.Desc{Chrom: "chr1", Pos: 1}, []variant.GenotypeByte{variant.MakeHaploidGenotype(1)}))
	require.NoError(t, w.Close(ctx))
	p, err = SniffPloidy(ctx, haploidPath)
	require.NoError(t, err)
	require.Equal(t, 1, p)
}

func TestDuplicateSampleNameRejected(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "dup.vcf")

	w, err := CreateForWriting(ctx, path, []string{"A", "A"}, 1, false, 0)
	require.NoError(t, err)
	require.NoError(t, w.SetVariant(ctx, variant.Desc{Chrom: "chr1", Pos: 1}, []variant.GenotypeByte{0, 0}))
	require.NoError(t, w.Close(ctx))

	_, err = OpenForReading(ctx, path, false)
	require.Error(t, err)
}
