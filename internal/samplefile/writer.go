// Package samplefile implements the single-sample predictive codec
// (§4.6): encoding and decoding one sample's genotypes against an
// already-built gtfile database, including the extra-variants list
// merge and the sample file's on-disk layout (§6).
package samplefile

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/ctxmap"
	"github.com/refresh-bio/gtshark/internal/gtfile"
	"github.com/refresh-bio/gtshark/internal/lzmaio"
	"github.com/refresh-bio/gtshark/internal/pbwt"
	"github.com/refresh-bio/gtshark/internal/rangecoder"
	"github.com/refresh-bio/gtshark/internal/variant"
	"github.com/refresh-bio/gtshark/internal/vcfio"
)

func alleleAt(g variant.GenotypeByte, haplotype int) uint8 {
	return (g >> uint(2*haplotype)) & 0b11
}

// Writer drives the encode-side per-variant loop of §4.6 against an
// open gtfile.Reader and a single-sample vcfio.Provider, buffering the
// range-coded stream until the full extra-variants list is known (the
// sample file's layout puts that list before the stream it follows
// from).
type Writer struct {
	ctx           context.Context
	db            *gtfile.Reader
	vfile         vcfio.Provider
	sampleName    string
	extraVariants bool
	headerShare   bool
	ploidy        int
	lzma          lzmaio.Provider
	sampleHeader  []byte

	rcBuf *bytes.Buffer
	rc    *rangecoder.Encoder

	residualModels *ctxmap.Map[*rangecoder.Model]
	flagModels     *ctxmap.Map[*rangecoder.Model]
	flagCtx        uint64

	samplePosPerm          [2]uint32
	noPredSame, noSuccSame [2]uint32
	hist                   *history

	parked []parkedVariant

	// Progress, if set, is called with the cumulative variant count
	// every sampleBatchSize variants (§7's fixed-rate progress
	// callback), and once more after the final variant.
	Progress func(count uint64)
}

// NewWriter prepares a Writer. vfile must hold exactly one sample at
// the db's ploidy.
func NewWriter(ctx context.Context, db *gtfile.Reader, vfile vcfio.Provider, sampleName string, extraVariants, headerShare bool) (*Writer, error) {
	if vfile.NoSamples() != 1 {
		return nil, errors.Errorf("samplefile: sample file must contain exactly one sample, got %d", vfile.NoSamples())
	}
	if vfile.Ploidy() != db.Ploidy {
		return nil, errors.Errorf("samplefile: sample ploidy %d does not match db ploidy %d", vfile.Ploidy(), db.Ploidy)
	}

	w := &Writer{
		ctx:            ctx,
		db:             db,
		vfile:          vfile,
		sampleName:     sampleName,
		extraVariants:  extraVariants,
		headerShare:    headerShare,
		ploidy:         db.Ploidy,
		lzma:           lzmaio.XZ{},
		residualModels: ctxmap.New[*rangecoder.Model](),
		flagModels:     ctxmap.New[*rangecoder.Model](),
		hist:           newHistory(),
		sampleHeader:   append([]byte(nil), vfile.GetHeader()...),
	}
	w.rcBuf = &bytes.Buffer{}
	w.rc = rangecoder.NewEncoder(w.rcBuf)

	if w.ploidy == 1 {
		w.samplePosPerm[0] = db.NoSamples
	} else {
		w.samplePosPerm[0] = 2 * db.NoSamples
		w.samplePosPerm[1] = 2 * db.NoSamples
	}
	return w, nil
}

func (w *Writer) residualModelFor(ctx uint64) *rangecoder.Model {
	if m, ok := w.residualModels.Find(ctx); ok {
		return m
	}
	m := rangecoder.NewModel(pbwt.Sigma, residualMaxLog, nil, residualIncrement)
	w.residualModels.Insert(ctx, m)
	return m
}

func (w *Writer) flagModelFor(ctx uint64) *rangecoder.Model {
	if m, ok := w.flagModels.Find(ctx); ok {
		return m
	}
	m := rangecoder.NewModel(5, residualMaxLog, nil, residualIncrement)
	w.flagModels.Insert(ctx, m)
	return m
}

// Run drives the full encode-side pass (§4.6 steps 1-6) and buffers
// the resulting range-coded stream. Call WriteTo afterwards to emit
// the complete sample file.
func (w *Writer) Run() error {
	w.rc.Start()
	var err error
	if w.extraVariants {
		err = w.runExtraVariants()
	} else {
		err = w.runAligned()
	}
	if err != nil {
		return err
	}
	if w.Progress != nil {
		w.Progress(uint64(len(w.parked)) + uint64(w.db.NoVariants))
	}
	return w.rc.End()
}

func (w *Writer) runAligned() error {
	for i := uint32(0); i < w.db.NoVariants; i++ {
		_, rle, ok, err := w.db.GetRawAndDesc()
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("samplefile: db ended before its declared %d variants", w.db.NoVariants)
		}
		_, genotypes, ok, err := w.vfile.GetVariant(w.ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("samplefile: sample file ended before db variant %d", i)
		}
		if err := w.codeHaplotypes(rle, genotypes[0]); err != nil {
			return err
		}
		w.reportProgress(uint64(i + 1))
	}
	return nil
}

func (w *Writer) reportProgress(count uint64) {
	if w.Progress != nil && (count%sampleBatchSize == 0) {
		w.Progress(count)
	}
}

func (w *Writer) runExtraVariants() error {
	descDB, rleDB, okDB, err := w.db.GetRawAndDesc()
	if err != nil {
		return err
	}
	descV, gtV, okV, err := w.vfile.GetVariant(w.ctx)
	if err != nil {
		return err
	}

	batch := 0
	var total uint64
	for okDB || okV {
		total++
		switch {
		case okDB && okV && descV.Equal(descDB):
			if err := w.emitFlag(flagMatch); err != nil {
				return err
			}
			if err := w.codeHaplotypes(rleDB, gtV[0]); err != nil {
				return err
			}
			if descDB, rleDB, okDB, err = w.db.GetRawAndDesc(); err != nil {
				return err
			}
			if descV, gtV, okV, err = w.vfile.GetVariant(w.ctx); err != nil {
				return err
			}
		case okV && (!okDB || descV.Less(descDB)):
			if err := w.emitFlag(flagSampleOnly); err != nil {
				return err
			}
			w.parked = append(w.parked, parkedVariant{desc: descV, genotype: gtV[0]})
			if descV, gtV, okV, err = w.vfile.GetVariant(w.ctx); err != nil {
				return err
			}
		default:
			if err := w.emitFlag(flagDBOnly); err != nil {
				return err
			}
			if descDB, rleDB, okDB, err = w.db.GetRawAndDesc(); err != nil {
				return err
			}
		}
		batch++
		if batch == sampleBatchSize {
			if err := w.emitFlag(flagBatchEnd); err != nil {
				return err
			}
			batch = 0
		}
		w.reportProgress(total)
	}
	return w.emitFlag(flagEOF)
}

func (w *Writer) emitFlag(flag uint8) error {
	model := w.flagModelFor(w.flagCtx)
	if err := model.Encode(w.rc, int(flag)); err != nil {
		return err
	}
	w.flagCtx = nextFlagCtx(w.flagCtx, flag)
	return nil
}

// codeHaplotypes runs §4.6 step 3 for every haplotype of one variant.
func (w *Writer) codeHaplotypes(rle []pbwt.Run, genotype variant.GenotypeByte) error {
	var sample [2]uint8
	for j := 0; j < w.ploidy; j++ {
		value := alleleAt(genotype, j)
		sample[j] = value

		bracket, newPos := w.db.Engine().EstimateValue(rle, w.samplePosPerm[j], value)
		ctx := residualContext(bracket, w.noPredSame[j], w.noSuccSame[j])
		model := w.residualModelFor(ctx)
		if err := model.Encode(w.rc, int(value)); err != nil {
			return err
		}

		w.samplePosPerm[j] = newPos

		haplotype := j
		w.noPredSame[j] = updateNeighborCounter(w.noPredSame[j], bracket[0], value, rle, w.samplePosPerm[j], w.hist, w.db.Engine(),
			func(e historyEntry) uint8 { return e.sample[haplotype] }, findPrevValue)
		w.noSuccSame[j] = updateNeighborCounter(w.noSuccSame[j], bracket[1], value, rle, w.samplePosPerm[j], w.hist, w.db.Engine(),
			func(e historyEntry) uint8 { return e.sample[haplotype] }, findNextValue)
	}
	w.hist.push(newHistoryEntry(rle, sample))
	return nil
}

// WriteTo emits the complete sample file (§6): the extra-variants
// flag, an optional header delta, the sample name, an optional parked
// list, and the buffered range-coded stream.
func (w *Writer) WriteTo(out io.Writer) error {
	evFlag := byte(0)
	if w.extraVariants {
		evFlag = 1
	}
	if _, err := out.Write([]byte{evFlag}); err != nil {
		return errors.Wrap(err, "samplefile: write extra-variants flag")
	}

	if w.headerShare {
		delta, err := w.lzma.CompressWithHistory(w.db.Header, w.sampleHeader, 9)
		if err != nil {
			return errors.Wrap(err, "samplefile: compress header delta")
		}
		if _, err := out.Write([]byte{1}); err != nil {
			return err
		}
		if err := writeLenBlock(out, delta); err != nil {
			return err
		}
	} else if _, err := out.Write([]byte{0}); err != nil {
		return err
	}

	nameBytes := []byte(w.sampleName)
	var nameLen [2]byte
	binary.LittleEndian.PutUint16(nameLen[:], uint16(len(nameBytes)))
	if _, err := out.Write(nameLen[:]); err != nil {
		return errors.Wrap(err, "samplefile: write sample name length")
	}
	if _, err := out.Write(nameBytes); err != nil {
		return errors.Wrap(err, "samplefile: write sample name")
	}

	if w.extraVariants {
		if len(w.parked) == 0 {
			if _, err := out.Write([]byte{0}); err != nil {
				return err
			}
		} else {
			if _, err := out.Write([]byte{1}); err != nil {
				return err
			}
			if err := writeParkedColumns(out, w.lzma, w.parked); err != nil {
				return err
			}
		}
	}

	if _, err := out.Write(w.rcBuf.Bytes()); err != nil {
		return errors.Wrap(err, "samplefile: write range-coded stream")
	}
	return nil
}
