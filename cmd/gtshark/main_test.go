package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

func writeVCF(t *testing.T, path, header string, lines ...string) {
	t.Helper()
	content := header
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCompressDecompressDBRoundtrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	inPath := filepath.Join(dir, "in.vcf")
	writeVCF(t, inPath, "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tA\tB\n",
		"chr1\t100\t.\tA\tG\t.\tPASS\t.\tGT\t0|1\t1|0",
		"chr1\t200\t.\tC\tT\t.\tPASS\t.\tGT\t0|0\t1|1",
	)
	dbBase := filepath.Join(dir, "test")
	require.NoError(t, runCompressDB([]string{"-nl", "10", inPath, dbBase}))

	outPath := filepath.Join(dir, "out.vcf")
	require.NoError(t, runDecompressDB([]string{dbBase, outPath}))

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(got), "chr1\t100")
	require.Contains(t, string(got), "0|1")
	require.Contains(t, string(got), "1|0")
	require.Contains(t, string(got), "chr1\t200")
}

func TestExtractSampleAndCompressDecompressSample(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	inPath := filepath.Join(dir, "in.vcf")
	writeVCF(t, inPath, "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tA\tB\tC\n",
		"chr1\t100\t.\tA\tG\t.\tPASS\t.\tGT\t0|0\t0|1\t1|1",
	)
	dbBase := filepath.Join(dir, "test")
	require.NoError(t, runCompressDB([]string{inPath, dbBase}))

	extractedPath := filepath.Join(dir, "b.vcf")
	require.NoError(t, runExtractSample([]string{dbBase, "B", extractedPath}))
	got, err := os.ReadFile(extractedPath)
	require.NoError(t, err)
	require.Contains(t, string(got), "0|1")

	err = runExtractSample([]string{dbBase, "Z", filepath.Join(dir, "z.vcf")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found in db")

	samplePath := filepath.Join(dir, "b.sample")
	require.NoError(t, runCompressSample([]string{dbBase, extractedPath, samplePath}))

	decodedPath := filepath.Join(dir, "b2.vcf")
	require.NoError(t, runDecompressSample([]string{dbBase, samplePath, decodedPath}))
	got2, err := os.ReadFile(decodedPath)
	require.NoError(t, err)
	require.Contains(t, string(got2), "0|1")
}
