package samplefile

import (
	"bufio"
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
)

// Reader drives the decode-side per-variant loop of §4.6.3 against an
// open gtfile.Reader and the byte stream OpenReader was given.
type Reader struct {
	ctx           context.Context
	db            *gtfile.Reader
	extraVariants bool
	ploidy        int
	lzma          lzmaio.Provider

	rc *rangecoder.Decoder

	residualModels *ctxmap.Map[*rangecoder.Model]
	flagModels     *ctxmap.Map[*rangecoder.Model]
	flagCtx        uint64

	samplePosPerm          [2]uint32
	noPredSame, noSuccSame [2]uint32
	hist                   *history

	sampleName  string
	headerDelta []byte

	parked    []parkedVariant
	parkedIdx int
	idx       uint32

	// Progress, if set, is called with the cumulative variant count
	// every sampleBatchSize variants decoded.
	Progress func(count uint64)
	total    uint64
}

// OpenReader parses a sample file's fixed-layout prefix from r and
// primes the range decoder over whatever remains.
func OpenReader(ctx context.Context, db *gtfile.Reader, r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var evFlag [1]byte
	if _, err := io.ReadFull(br, evFlag[:]); err != nil {
		return nil, errors.Wrap(err, "samplefile: read extra-variants flag")
	}
	rd := &Reader{
		ctx:            ctx,
		db:             db,
		extraVariants:  evFlag[0] == 1,
		ploidy:         db.Ploidy,
		lzma:           lzmaio.XZ{},
		residualModels: ctxmap.New[*rangecoder.Model](),
		flagModels:     ctxmap.New[*rangecoder.Model](),
		hist:           newHistory(),
	}

	var headerPresent [1]byte
	if _, err := io.ReadFull(br, headerPresent[:]); err != nil {
		return nil, errors.Wrap(err, "samplefile: read header-present marker")
	}
	if headerPresent[0] == 1 {
		block, err := readLenBlock(br)
		if err != nil {
			return nil, err
		}
		header, err := rd.lzma.DecompressWithHistory(db.Header, block)
		if err != nil {
			return nil, errors.Wrap(err, "samplefile: decompress header delta")
		}
		rd.headerDelta = header
	}

	var nameLen [2]byte
	if _, err := io.ReadFull(br, nameLen[:]); err != nil {
		return nil, errors.Wrap(err, "samplefile: read sample name length")
	}
	nameBytes := make([]byte, binary.LittleEndian.Uint16(nameLen[:]))
	if _, err := io.ReadFull(br, nameBytes); err != nil {
		return nil, errors.Wrap(err, "samplefile: read sample name")
	}
	rd.sampleName = string(nameBytes)

	if rd.extraVariants {
		var evPresent [1]byte
		if _, err := io.ReadFull(br, evPresent[:]); err != nil {
			return nil, errors.Wrap(err, "samplefile: read parked-list marker")
		}
		if evPresent[0] == 1 {
			parked, err := readParkedColumns(br, rd.lzma)
			if err != nil {
				return nil, err
			}
			rd.parked = parked
		}
	}

	rd.rc = rangecoder.NewDecoder(br)
	if err := rd.rc.Start(); err != nil {
		return nil, errors.Wrap(err, "samplefile: prime range decoder")
	}

	if rd.ploidy == 1 {
		rd.samplePosPerm[0] = db.NoSamples
	} else {
		rd.samplePosPerm[0] = 2 * db.NoSamples
		rd.samplePosPerm[1] = 2 * db.NoSamples
	}
	return rd, nil
}

// SampleName returns the sample's own name, as stored in the file.
func (rd *Reader) SampleName() string { return rd.sampleName }

// Header returns the sample's header text: the reconstructed delta
// against the db header if present, otherwise the db header itself.
func (rd *Reader) Header() []byte {
	if rd.headerDelta != nil {
		return rd.headerDelta
	}
	return rd.db.Header
}

func (rd *Reader) residualModelFor(ctx uint64) *rangecoder.Model {
	if m, ok := rd.residualModels.Find(ctx); ok {
		return m
	}
	m := rangecoder.NewModel(pbwt.Sigma, residualMaxLog, nil, residualIncrement)
	rd.residualModels.Insert(ctx, m)
	return m
}

func (rd *Reader) flagModelFor(ctx uint64) *rangecoder.Model {
	if m, ok := rd.flagModels.Find(ctx); ok {
		return m
	}
	m := rangecoder.NewModel(5, residualMaxLog, nil, residualIncrement)
	rd.flagModels.Insert(ctx, m)
	return m
}

// GetVariant returns the next reconstructed (descriptor, genotype)
// pair, or ok=false at end of file.
func (rd *Reader) GetVariant() (variant.Desc, []variant.GenotypeByte, bool, error) {
	desc, g, ok, err := rd.next()
	if err != nil || !ok {
		return variant.Desc{}, nil, ok, err
	}
	rd.total++
	if rd.Progress != nil && rd.total%sampleBatchSize == 0 {
		rd.Progress(rd.total)
	}
	return desc, []variant.GenotypeByte{g}, true, nil
}

func (rd *Reader) next() (variant.Desc, variant.GenotypeByte, bool, error) {
	if !rd.extraVariants {
		if rd.idx >= rd.db.NoVariants {
			return variant.Desc{}, 0, false, nil
		}
		desc, rle, ok, err := rd.db.GetRawAndDesc()
		if err != nil {
			return variant.Desc{}, 0, false, err
		}
		if !ok {
			return variant.Desc{}, 0, false, errors.New("samplefile: db ended before its declared variant count")
		}
		g, err := rd.codeHaplotypes(rle)
		if err != nil {
			return variant.Desc{}, 0, false, err
		}
		rd.idx++
		return desc, g, true, nil
	}

	for {
		model := rd.flagModelFor(rd.flagCtx)
		flag, err := model.Decode(rd.rc)
		if err != nil {
			return variant.Desc{}, 0, false, err
		}
		rd.flagCtx = nextFlagCtx(rd.flagCtx, uint8(flag))

		switch flag {
		case flagEOF:
			return variant.Desc{}, 0, false, nil
		case flagBatchEnd:
			continue
		case flagMatch:
			desc, rle, ok, err := rd.db.GetRawAndDesc()
			if err != nil {
				return variant.Desc{}, 0, false, err
			}
			if !ok {
				return variant.Desc{}, 0, false, errors.New("samplefile: flag stream matched past end of db")
			}
			g, err := rd.codeHaplotypes(rle)
			if err != nil {
				return variant.Desc{}, 0, false, err
			}
			return desc, g, true, nil
		case flagSampleOnly:
			if rd.parkedIdx >= len(rd.parked) {
				return variant.Desc{}, 0, false, errors.New("samplefile: flag stream references a missing parked variant")
			}
			p := rd.parked[rd.parkedIdx]
			rd.parkedIdx++
			return p.desc, p.genotype, true, nil
		case flagDBOnly:
			if _, _, ok, err := rd.db.GetRawAndDesc(); err != nil {
				return variant.Desc{}, 0, false, err
			} else if !ok {
				return variant.Desc{}, 0, false, errors.New("samplefile: flag stream skipped past end of db")
			}
		default:
			return variant.Desc{}, 0, false, errors.Errorf("samplefile: unrecognized flag %d", flag)
		}
	}
}

// codeHaplotypes runs §4.6.3's decode-side mirror of codeHaplotypes
// for every haplotype of one variant.
func (rd *Reader) codeHaplotypes(rle []pbwt.Run) (variant.GenotypeByte, error) {
	var sample [2]uint8
	for j := 0; j < rd.ploidy; j++ {
		bracket, _ := rd.db.Engine().EstimateValue(rle, rd.samplePosPerm[j], 0)
		ctx := residualContext(bracket, rd.noPredSame[j], rd.noSuccSame[j])
		model := rd.residualModelFor(ctx)
		v, err := model.Decode(rd.rc)
		if err != nil {
			return 0, err
		}
		value := uint8(v)
		sample[j] = value

		_, newPos := rd.db.Engine().EstimateValue(rle, rd.samplePosPerm[j], value)
		rd.samplePosPerm[j] = newPos

		haplotype := j
		rd.noPredSame[j] = updateNeighborCounter(rd.noPredSame[j], bracket[0], value, rle, rd.samplePosPerm[j], rd.hist, rd.db.Engine(),
			func(e historyEntry) uint8 { return e.sample[haplotype] }, findPrevValue)
		rd.noSuccSame[j] = updateNeighborCounter(rd.noSuccSame[j], bracket[1], value, rle, rd.samplePosPerm[j], rd.hist, rd.db.Engine(),
			func(e historyEntry) uint8 { return e.sample[haplotype] }, findNextValue)
	}
	rd.hist.push(newHistoryEntry(rle, sample))

	if rd.ploidy == 1 {
		return variant.MakeHaploidGenotype(sample[0]), nil
	}
	return variant.MakeGenotype(sample[0], sample[1]), nil
}
