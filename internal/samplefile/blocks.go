package samplefile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/lzmaio"
	"github.com/refresh-bio/gtshark/internal/variant"
)

// parkedVariant is one extra-variants-mode record parked because the
// sample carried a variant the DB did not (§4.6 step 2, flag 1).
type parkedVariant struct {
	desc     variant.Desc
	genotype variant.GenotypeByte
}

// Column order for the parked-variant list (§6): nine blocks, the last
// carrying one raw genotype byte per record instead of NUL-terminated
// text.
const (
	parkedChrom = iota
	parkedPos
	parkedID
	parkedRef
	parkedAlt
	parkedQual
	parkedFilter
	parkedInfo
	parkedGT
	numParkedColumns
)

func writeLenBlock(w io.Writer, block []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(block)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "samplefile: write block length")
	}
	if _, err := w.Write(block); err != nil {
		return errors.Wrap(err, "samplefile: write block body")
	}
	return nil
}

func readLenBlock(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "samplefile: read block length")
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	block := make([]byte, n)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, errors.Wrap(err, "samplefile: read block body")
	}
	return block, nil
}

// writeParkedColumns LZMA-compresses each of the nine parked-list
// columns at preset 9 and writes them as length-prefixed blocks, in
// fixed order, per §4.6 step 6 / §6.
func writeParkedColumns(w io.Writer, lzma lzmaio.Provider, parked []parkedVariant) error {
	var cols [numParkedColumns]bytes.Buffer
	var prevPos int64
	for _, p := range parked {
		cols[parkedChrom].WriteString(p.desc.Chrom)
		cols[parkedChrom].WriteByte(0)
		delta := p.desc.Pos - prevPos
		prevPos = p.desc.Pos
		var deltaBuf [4]byte
		binary.LittleEndian.PutUint32(deltaBuf[:], uint32(delta))
		cols[parkedPos].Write(deltaBuf[:])
		cols[parkedID].WriteString(p.desc.ID)
		cols[parkedID].WriteByte(0)
		cols[parkedRef].WriteString(p.desc.Ref)
		cols[parkedRef].WriteByte(0)
		cols[parkedAlt].WriteString(p.desc.Alt)
		cols[parkedAlt].WriteByte(0)
		cols[parkedQual].WriteString(p.desc.Qual)
		cols[parkedQual].WriteByte(0)
		cols[parkedFilter].WriteString(p.desc.Filter)
		cols[parkedFilter].WriteByte(0)
		cols[parkedInfo].WriteString(p.desc.Info)
		cols[parkedInfo].WriteByte(0)
		cols[parkedGT].WriteByte(p.genotype)
	}
	for i := 0; i < numParkedColumns; i++ {
		compressed, err := lzma.Compress(cols[i].Bytes(), 9)
		if err != nil {
			return errors.Wrapf(err, "samplefile: compress parked column %d", i)
		}
		if err := writeLenBlock(w, compressed); err != nil {
			return err
		}
	}
	return nil
}

func splitNUL(b []byte) [][]byte {
	if len(b) == 0 {
		return nil
	}
	parts := bytes.Split(b, []byte{0})
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// readParkedColumns reverses writeParkedColumns.
func readParkedColumns(r *bufio.Reader, lzma lzmaio.Provider) ([]parkedVariant, error) {
	var decompressed [numParkedColumns][]byte
	for i := 0; i < numParkedColumns; i++ {
		block, err := readLenBlock(r)
		if err != nil {
			return nil, err
		}
		d, err := lzma.Decompress(block)
		if err != nil {
			return nil, errors.Wrapf(err, "samplefile: decompress parked column %d", i)
		}
		decompressed[i] = d
	}

	chrom := splitNUL(decompressed[parkedChrom])
	id := splitNUL(decompressed[parkedID])
	ref := splitNUL(decompressed[parkedRef])
	alt := splitNUL(decompressed[parkedAlt])
	qual := splitNUL(decompressed[parkedQual])
	filter := splitNUL(decompressed[parkedFilter])
	info := splitNUL(decompressed[parkedInfo])
	gt := decompressed[parkedGT]
	posDeltas := decompressed[parkedPos]

	n := len(posDeltas) / 4
	parked := make([]parkedVariant, n)
	var prevPos int64
	for i := 0; i < n; i++ {
		delta := int64(int32(binary.LittleEndian.Uint32(posDeltas[i*4 : i*4+4])))
		prevPos += delta
		parked[i] = parkedVariant{
			desc: variant.Desc{
				Chrom:  fieldAt(chrom, i),
				Pos:    prevPos,
				ID:     fieldAt(id, i),
				Ref:    fieldAt(ref, i),
				Alt:    fieldAt(alt, i),
				Qual:   fieldAt(qual, i),
				Filter: fieldAt(filter, i),
				Info:   fieldAt(info, i),
			},
			genotype: gt[i],
		}
	}
	return parked, nil
}

func fieldAt(fields [][]byte, i int) string {
	if i >= len(fields) {
		return ""
	}
	return string(fields[i])
}
