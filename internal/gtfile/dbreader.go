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

// Reader iterates a compressed DB's variants in order, either
// materializing genotypes (GetVariant) or exposing raw RLE runs for
// the sample codec's predictive coding (GetRawAndDesc).
type Reader struct {
	ctx    context.Context
	dbFile file.File
	gtFile file.File
	gtDec  *rangecoder.Decoder

	NoVariants   uint32
	NoSamples    uint32
	Ploidy       int
	NeglectLimit uint32
	Header       []byte
	Samples      []string

	fields [numColumns][][]byte // per-column, one entry per variant (for chrom..info, pos)

	engine *pbwt.Engine
	runs   *runCoder

	idx     int
	prevPos int64
}

// Open reads and validates a compressed DB's header, decompresses its
// descriptor columns, and prepares the gt stream for reading.
func Open(ctx context.Context, base string) (*Reader, error) {
	dbPath, gtPath := Paths(base)
	dbf, err := file.Open(ctx, dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "gtfile: open %s", dbPath)
	}
	in := bufio.NewReader(dbf.Reader(ctx))

	var hdr [13]byte
	if _, err := readFull(in, hdr[:]); err != nil {
		dbf.Close(ctx)
		return nil, errors.Wrap(err, "gtfile: read db header")
	}
	r := &Reader{
		ctx:          ctx,
		dbFile:       dbf,
		NoVariants:   binary.LittleEndian.Uint32(hdr[0:4]),
		NoSamples:    binary.LittleEndian.Uint32(hdr[4:8]),
		Ploidy:       int(hdr[8]),
		NeglectLimit: binary.LittleEndian.Uint32(hdr[9:13]),
		engine:       pbwt.New(),
		runs:         newRunCoder(),
	}
	if r.Ploidy != 1 && r.Ploidy != 2 {
		dbf.Close(ctx)
		return nil, errors.Errorf("gtfile: unsupported ploidy %d in db header", r.Ploidy)
	}

	var compressed [numColumns][]byte
	for i := 0; i < numColumns; i++ {
		b, err := readBlock(in)
		if err != nil {
			dbf.Close(ctx)
			return nil, errors.Wrapf(err, "gtfile: read %s column", columnNames[i])
		}
		compressed[i] = b
	}
	var digest [highwayhash.Size]byte
	if _, err := readFull(in, digest[:]); err != nil {
		dbf.Close(ctx)
		return nil, errors.Wrap(err, "gtfile: read digest trailer")
	}

	var zeroKey [highwayhash.Size]byte
	var buf bytes.Buffer
	for i := 0; i < numColumns; i++ {
		if i == colMeta {
			continue
		}
		buf.Write(compressed[i])
	}
	if highwayhash.Sum(buf.Bytes(), zeroKey[:]) != digest {
		dbf.Close(ctx)
		return nil, errors.New("gtfile: db file failed integrity digest check")
	}

	var decompressed [numColumns][]byte
	var lzma lzmaio.XZ
	err = traverse.Each(numColumns, func(i int) error {
		b, err := lzma.Decompress(compressed[i])
		if err != nil {
			return errors.Wrapf(err, "gtfile: decompress %s column", columnNames[i])
		}
		decompressed[i] = b
		return nil
	})
	if err != nil {
		dbf.Close(ctx)
		return nil, err
	}

	if !bytes.HasPrefix(decompressed[colMeta], metaMagic[:]) {
		dbf.Close(ctx)
		return nil, errors.New("gtfile: db file missing or mismatched format magic")
	}
	r.Header = decompressed[colHeader]
	for _, s := range splitNUL(decompressed[colSamples]) {
		r.Samples = append(r.Samples, string(s))
	}
	for _, col := range []int{colChrom, colPos, colID, colRef, colAlt, colQual, colFilter, colInfo} {
		r.fields[col] = splitNUL(decompressed[col])
	}

	gtf, err := file.Open(ctx, gtPath)
	if err != nil {
		dbf.Close(ctx)
		return nil, errors.Wrapf(err, "gtfile: open %s", gtPath)
	}
	r.gtFile = gtf
	r.gtDec = rangecoder.NewDecoder(bufio.NewReader(gtf.Reader(ctx)))
	if r.NoVariants > 0 {
		if err := r.gtDec.Start(); err != nil {
			gtf.Close(ctx)
			dbf.Close(ctx)
			return nil, err
		}
	}
	r.engine.StartReverse(r.NoSamples*uint32(r.Ploidy), r.NeglectLimit)
	return r, nil
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

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func readBlock(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "read block length")
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	block := make([]byte, n)
	if _, err := readFull(r, block); err != nil {
		return nil, errors.Wrap(err, "read block body")
	}
	return block, nil
}

func (r *Reader) fieldAt(col, idx int) string {
	if idx >= len(r.fields[col]) {
		return ""
	}
	return string(r.fields[col][idx])
}

func (r *Reader) descAt(idx int) (variant.Desc, error) {
	deltaStr := r.fieldAt(colPos, idx)
	delta, err := strconv.ParseInt(deltaStr, 10, 64)
	if err != nil {
		return variant.Desc{}, errors.Wrapf(err, "gtfile: malformed pos delta %q at variant %d", deltaStr, idx)
	}
	r.prevPos += delta
	return variant.Desc{
		Chrom:  r.fieldAt(colChrom, idx),
		Pos:    r.prevPos,
		ID:     r.fieldAt(colID, idx),
		Ref:    r.fieldAt(colRef, idx),
		Alt:    r.fieldAt(colAlt, idx),
		Qual:   r.fieldAt(colQual, idx),
		Filter: r.fieldAt(colFilter, idx),
		Info:   r.fieldAt(colInfo, idx),
	}, nil
}

// GetVariant reads and fully decodes the next variant's descriptor
// and genotype vector.
func (r *Reader) GetVariant() (variant.Desc, []variant.GenotypeByte, bool, error) {
	if r.idx >= int(r.NoVariants) {
		return variant.Desc{}, nil, false, nil
	}
	desc, err := r.descAt(r.idx)
	if err != nil {
		return variant.Desc{}, nil, false, err
	}
	runs, err := r.runs.decodeRuns(r.gtDec, r.engine.NoItems())
	if err != nil {
		return variant.Desc{}, nil, false, err
	}
	column := r.engine.Decode(runs)
	r.idx++
	return desc, restoreGenotypes(column, r.Ploidy), true, nil
}

// GetRawAndDesc reads the next variant's descriptor and raw RLE runs,
// advancing the PBWT permutation without materializing a genotype
// column — the query the sample codec drives its predictive coding
// from (§4.5, get_raw_and_desc).
func (r *Reader) GetRawAndDesc() (variant.Desc, []pbwt.Run, bool, error) {
	if r.idx >= int(r.NoVariants) {
		return variant.Desc{}, nil, false, nil
	}
	desc, err := r.descAt(r.idx)
	if err != nil {
		return variant.Desc{}, nil, false, err
	}
	runs, err := r.runs.decodeRuns(r.gtDec, r.engine.NoItems())
	if err != nil {
		return variant.Desc{}, nil, false, err
	}
	r.engine.Advance(runs)
	r.idx++
	return desc, runs, true, nil
}

// Engine exposes the PBWT engine so the sample codec can call
// TrackItem/TrackItems/EstimateValue/RevertDecode against the same
// evolving permutation GetRawAndDesc advances.
func (r *Reader) Engine() *pbwt.Engine { return r.engine }

// Close releases the db/gt files.
func (r *Reader) Close() error {
	var err error
	if r.gtFile != nil {
		if e := r.gtFile.Close(r.ctx); e != nil {
			err = e
		}
	}
	if e := r.dbFile.Close(r.ctx); e != nil && err == nil {
		err = e
	}
	return err
}
