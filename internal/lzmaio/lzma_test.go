package lzmaio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundtrip(t *testing.T) {
	var p XZ
	for _, level := range []int{0, 1, 9} {
		data := []byte("chr1\x00chr1\x00chr2\x00" + string(make([]byte, 200)))
		enc, err := p.Compress(data, level)
		require.NoError(t, err)
		dec, err := p.Decompress(enc)
		require.NoError(t, err)
		require.Equal(t, data, dec)
	}
}

func TestCompressWithHistoryRoundtrip(t *testing.T) {
	var p XZ
	history := []byte("##fileformat=VCFv4.2\n##contig=<ID=chr1>\n#CHROM\tPOS\n")
	target := []byte("##fileformat=VCFv4.2\n##contig=<ID=chr1>\n##extra=1\n#CHROM\tPOS\n")

	enc, err := p.CompressWithHistory(history, target, 9)
	require.NoError(t, err)

	dec, err := p.DecompressWithHistory(history, enc)
	require.NoError(t, err)
	require.Equal(t, target, dec)
}

func TestCompressWithHistoryEmptyTarget(t *testing.T) {
	var p XZ
	history := []byte("some header bytes that are reasonably long for a prefix test case")
	enc, err := p.CompressWithHistory(history, nil, 9)
	require.NoError(t, err)
	dec, err := p.DecompressWithHistory(history, enc)
	require.NoError(t, err)
	require.Empty(t, dec)
}
