// Package gtfile is the compressed-DB codec: it orchestrates the PBWT
// engine and the range-coded run stream against the "_db"/"_gt" file
// pair, manages the eight textual descriptor columns, and exposes the
// raw-run queries the sample codec drives its predictive coding from.
package gtfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/traverse"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/lzmaio"
	"github.com/refresh-bio/gtshark/internal/pbwt"
	"github.com/refresh-bio/gtshark/internal/rangecoder"
	"github.com/refresh-bio/gtshark/internal/variant"
)

// Paths derives the sibling "_db"/"_gt" file pair from a base path
// (the CLI's <out_db>/<in_db> argument), per §6's file layout.
func Paths(base string) (dbPath, gtPath string) {
	return base + "_db", base + "_gt"
}

// Writer builds a compressed DB from a stream of SetVariant calls.
type Writer struct {
	ctx          context.Context
	dbFile, gtFile file.File
	gtWriter     *bufio.Writer
	lzma         lzmaio.Provider

	samples      []string
	ploidy       int
	neglectLimit uint32
	header       []byte

	engine  *pbwt.Engine
	runs    *runCoder
	gtEnc   *rangecoder.Encoder
	started bool

	prevPos  int64
	noVariants uint32
	check    monotonicityCheck

	cols [numColumns]bytes.Buffer
}

// NewWriter creates the db/gt file pair and prepares a Writer for
// samples (sample name order is fixed for the life of the DB) at the
// given ploidy and neglect limit.
func NewWriter(ctx context.Context, base string, samples []string, ploidy int, neglectLimit uint32) (*Writer, error) {
	if ploidy != 1 && ploidy != 2 {
		return nil, errors.Errorf("gtfile: unsupported ploidy %d", ploidy)
	}
	dbPath, gtPath := Paths(base)
	dbf, err := file.Create(ctx, dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "gtfile: create %s", dbPath)
	}
	gtf, err := file.Create(ctx, gtPath)
	if err != nil {
		dbf.Close(ctx)
		return nil, errors.Wrapf(err, "gtfile: create %s", gtPath)
	}

	w := &Writer{
		ctx:          ctx,
		dbFile:       dbf,
		gtFile:       gtf,
		gtWriter:     bufio.NewWriter(gtf.Writer(ctx)),
		lzma:         lzmaio.XZ{},
		samples:      append([]string(nil), samples...),
		ploidy:       ploidy,
		neglectLimit: neglectLimit,
		engine:       pbwt.New(),
		runs:         newRunCoder(),
	}
	w.gtEnc = rangecoder.NewEncoder(w.gtWriter)
	w.engine.StartForward(uint32(len(samples)*ploidy), neglectLimit)

	for _, s := range samples {
		w.cols[colSamples].WriteString(s)
		w.cols[colSamples].WriteByte(0)
	}
	return w, nil
}

// SetHeader installs the VCF header text stored verbatim in the
// "header" column.
func (w *Writer) SetHeader(header []byte) { w.header = header }

// SetVariant appends one variant's descriptor and genotype column.
func (w *Writer) SetVariant(desc variant.Desc, genotypes []variant.GenotypeByte) error {
	if err := w.check.observe(desc); err != nil {
		return err
	}
	if !w.started {
		w.started = true
		w.gtEnc.Start()
	}

	delta := desc.Pos - w.prevPos
	w.prevPos = desc.Pos
	w.cols[colChrom].WriteString(desc.Chrom)
	w.cols[colChrom].WriteByte(0)
	w.cols[colPos].WriteString(strconv.FormatInt(delta, 10))
	w.cols[colPos].WriteByte(0)
	w.cols[colID].WriteString(desc.ID)
	w.cols[colID].WriteByte(0)
	w.cols[colRef].WriteString(desc.Ref)
	w.cols[colRef].WriteByte(0)
	w.cols[colAlt].WriteString(desc.Alt)
	w.cols[colAlt].WriteByte(0)
	w.cols[colQual].WriteString(desc.Qual)
	w.cols[colQual].WriteByte(0)
	w.cols[colFilter].WriteString(desc.Filter)
	w.cols[colFilter].WriteByte(0)
	w.cols[colInfo].WriteString(desc.Info)
	w.cols[colInfo].WriteByte(0)

	column := flattenGenotypes(genotypes, w.ploidy)
	runs := w.engine.Encode(column)
	if err := w.runs.encodeRuns(w.gtEnc, runs); err != nil {
		return err
	}
	w.noVariants++
	return nil
}

// Close finalizes the run stream, LZMA-compresses every descriptor
// column in parallel, computes the integrity digest, and writes the
// db header plus the eleven blocks.
func (w *Writer) Close() error {
	var endErr error
	if w.started {
		endErr = w.gtEnc.End()
	}
	if err := w.gtWriter.Flush(); err != nil && endErr == nil {
		endErr = err
	}
	if err := w.gtFile.Close(w.ctx); err != nil && endErr == nil {
		endErr = err
	}
	if endErr != nil {
		w.dbFile.Close(w.ctx)
		return errors.Wrap(endErr, "gtfile: finalize gt stream")
	}

	w.cols[colHeader].Write(w.header)
	w.cols[colMeta].Write(metaMagic[:])

	compressed, err := compressColumns(&w.cols)
	if err != nil {
		w.dbFile.Close(w.ctx)
		return err
	}

	digest := digestOf(compressed)

	out := bufio.NewWriter(w.dbFile.Writer(w.ctx))
	var hdr [13]byte
	binary.LittleEndian.PutUint32(hdr[0:4], w.noVariants)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(w.samples)))
	hdr[8] = byte(w.ploidy)
	binary.LittleEndian.PutUint32(hdr[9:13], w.neglectLimit)
	if _, err := out.Write(hdr[:]); err != nil {
		w.dbFile.Close(w.ctx)
		return errors.Wrap(err, "gtfile: write db header")
	}
	for i := 0; i < numColumns; i++ {
		if err := writeBlock(out, compressed[i]); err != nil {
			w.dbFile.Close(w.ctx)
			return err
		}
	}
	if _, err := out.Write(digest[:]); err != nil {
		w.dbFile.Close(w.ctx)
		return errors.Wrap(err, "gtfile: write digest trailer")
	}
	if err := out.Flush(); err != nil {
		w.dbFile.Close(w.ctx)
		return errors.Wrap(err, "gtfile: flush db file")
	}
	return w.dbFile.Close(w.ctx)
}

func compressColumns(cols *[numColumns]bytes.Buffer) ([numColumns][]byte, error) {
	var out [numColumns][]byte
	var lzma lzmaio.XZ
	err := traverse.Each(numColumns, func(i int) error {
		b, err := lzma.Compress(cols[i].Bytes(), 9)
		if err != nil {
			return errors.Wrapf(err, "gtfile: compress %s column", columnNames[i])
		}
		out[i] = b
		return nil
	})
	return out, err
}

// digestOf hashes the concatenation of every non-meta column's
// compressed bytes — a format-corruption check the original has
// nothing equivalent to beyond LZMA's own stream integrity.
func digestOf(compressed [numColumns][]byte) [highwayhash.Size]byte {
	var buf bytes.Buffer
	for i := 0; i < numColumns; i++ {
		if i == colMeta {
			continue
		}
		buf.Write(compressed[i])
	}
	var zeroKey [highwayhash.Size]byte
	return highwayhash.Sum(buf.Bytes(), zeroKey[:])
}

func writeBlock(w *bufio.Writer, block []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(block)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "gtfile: write block length")
	}
	if _, err := w.Write(block); err != nil {
		return errors.Wrap(err, "gtfile: write block body")
	}
	return nil
}
