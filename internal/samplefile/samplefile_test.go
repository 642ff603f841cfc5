package samplefile

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/refresh-bio/gtshark/internal/gtfile"
	"github.com/refresh-bio/gtshark/internal/variant"
	"github.com/refresh-bio/gtshark/internal/vcfio"
	"github.com/stretchr/testify/require"
)

func buildDB(t *testing.T, dir string, samples []string, descs []variant.Desc, genotypes [][]variant.GenotypeByte) string {
	ctx := vcontext.Background()
	base := filepath.Join(dir, "db")
	w, err := gtfile.NewWriter(ctx, base, samples, 2, 10)
	require.NoError(t, err)
	w.SetHeader([]byte("##fileformat=VCFv4.2\n"))
	for i, d := range descs {
		require.NoError(t, w.SetVariant(d, genotypes[i]))
	}
	require.NoError(t, w.Close())
	return base
}

func buildSampleVCF(t *testing.T, dir, name string, descs []variant.Desc, genotypes []variant.GenotypeByte) string {
	ctx := vcontext.Background()
	path := filepath.Join(dir, name)
	w, err := vcfio.CreateForWriting(ctx, path, []string{"S"}, 2, false, 0)
	require.NoError(t, err)
	for i, d := range descs {
		require.NoError(t, w.SetVariant(ctx, d, []variant.GenotypeByte{genotypes[i]}))
	}
	require.NoError(t, w.Close(ctx))
	return path
}

func TestSampleRoundtripAligned(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	samples := []string{"A", "B", "C"}
	var descs []variant.Desc
	var dbGT [][]variant.GenotypeByte
	var sampleGT []variant.GenotypeByte
	for i := 0; i < 100; i++ {
		descs = append(descs, variant.Desc{Chrom: "chr1", Pos: int64(100 + i), Ref: "A", Alt: "G", ID: ".", Qual: ".", Filter: "PASS", Info: "."})
		a0, a1 := uint8(i%2), uint8((i/2)%2)
		row := []variant.GenotypeByte{
			variant.MakeGenotype(0, 0),
			variant.MakeGenotype(a0, a1),
			variant.MakeGenotype(a1, a0),
		}
		dbGT = append(dbGT, row)
		sampleGT = append(sampleGT, variant.MakeGenotype(a0, a1))
	}

	dbBase := buildDB(t, dir, samples, descs, dbGT)
	samplePath := buildSampleVCF(t, dir, "sample.vcf", descs, sampleGT)

	db, err := gtfile.Open(ctx, dbBase)
	require.NoError(t, err)
	vfile, err := vcfio.OpenForReading(ctx, samplePath, false)
	require.NoError(t, err)

	w, err := NewWriter(ctx, db, vfile, "S", false, false)
	require.NoError(t, err)
	require.NoError(t, w.Run())
	require.NoError(t, vfile.Close(ctx))
	require.NoError(t, db.Close())

	var encoded bytes.Buffer
	require.NoError(t, w.WriteTo(&encoded))

	db2, err := gtfile.Open(ctx, dbBase)
	require.NoError(t, err)
	rd, err := OpenReader(ctx, db2, bytes.NewReader(encoded.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "S", rd.SampleName())

	for i := 0; i < len(descs); i++ {
		desc, gt, ok, err := rd.GetVariant()
		require.NoError(t, err)
		require.True(t, ok, "variant %d", i)
		require.Equal(t, descs[i].Pos, desc.Pos)
		require.Equal(t, sampleGT[i], gt[0], "variant %d genotype mismatch", i)
	}
	_, _, ok, err := rd.GetVariant()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, db2.Close())
}

func TestSampleRoundtripExtraVariants(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	samples := []string{"A", "B"}
	var dbDescs []variant.Desc
	var dbGT [][]variant.GenotypeByte
	for i := 0; i < 20; i++ {
		dbDescs = append(dbDescs, variant.Desc{Chrom: "chr1", Pos: int64(10 * (i + 1)), Ref: "A", Alt: "G", ID: ".", Qual: ".", Filter: "PASS", Info: "."})
		dbGT = append(dbGT, []variant.GenotypeByte{variant.MakeGenotype(0, 0), variant.MakeGenotype(1, 1)})
	}
	dbBase := buildDB(t, dir, samples, dbDescs, dbGT)

	// Sample VCF omits db variants at index 5 and 15, and adds three
	// private variants: one before, one among, and one after the kept
	// ones.
	var sampleDescs []variant.Desc
	var sampleGT []variant.GenotypeByte
	expected := map[int64]variant.GenotypeByte{}
	addPrivate := func(pos int64) {
		d := variant.Desc{Chrom: "chr1", Pos: pos, Ref: "C", Alt: "T", ID: ".", Qual: ".", Filter: "PASS", Info: "."}
		g := variant.MakeGenotype(1, 0)
		sampleDescs = append(sampleDescs, d)
		sampleGT = append(sampleGT, g)
		expected[pos] = g
	}
	addPrivate(5) // before everything
	for i, d := range dbDescs {
		if i == 9 {
			addPrivate(95) // between db variant 8 (pos 90) and 9 (pos 100)
		}
		if i == 5 || i == 15 {
			continue
		}
		g := variant.MakeGenotype(0, 1)
		sampleDescs = append(sampleDescs, d)
		sampleGT = append(sampleGT, g)
		expected[d.Pos] = g
	}
	addPrivate(1000) // after everything
	samplePath := buildSampleVCF(t, dir, "sample.vcf", sampleDescs, sampleGT)

	db, err := gtfile.Open(ctx, dbBase)
	require.NoError(t, err)
	vfile, err := vcfio.OpenForReading(ctx, samplePath, false)
	require.NoError(t, err)

	w, err := NewWriter(ctx, db, vfile, "S", true, false)
	require.NoError(t, err)
	require.NoError(t, w.Run())
	require.NoError(t, vfile.Close(ctx))
	require.NoError(t, db.Close())

	var encoded bytes.Buffer
	require.NoError(t, w.WriteTo(&encoded))

	db2, err := gtfile.Open(ctx, dbBase)
	require.NoError(t, err)
	rd, err := OpenReader(ctx, db2, bytes.NewReader(encoded.Bytes()))
	require.NoError(t, err)

	var gotPos []int64
	gotGT := map[int64]variant.GenotypeByte{}
	for {
		desc, gt, ok, err := rd.GetVariant()
		require.NoError(t, err)
		if !ok {
			break
		}
		gotPos = append(gotPos, desc.Pos)
		gotGT[desc.Pos] = gt[0]
	}
	require.Equal(t, len(sampleDescs), len(gotPos))
	for _, d := range sampleDescs {
		require.Equal(t, expected[d.Pos], gotGT[d.Pos], "pos %d", d.Pos)
	}
	require.NoError(t, db2.Close())
}
