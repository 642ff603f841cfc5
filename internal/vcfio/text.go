package vcfio

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/variant"
)

// Text is the Provider implementation for plain-text VCF, and (when
// opened in block mode) the "-b"/"-c" BCF-style container described in
// blockio.go. It is the only Provider this module ships: the format
// layer the rest of the pack hand-rolls with bufio rather than a
// third-party parser (see other_examples/jtb324-go-vcf-parser).
type Text struct {
	f       file.File
	closer  func(ctx context.Context) error
	scanner *bufio.Scanner
	w       *bufio.Writer
	flush   func() error

	header    []byte
	samples   []string
	ploidy    int
	gtIndex   int // column index of "GT" within the FORMAT field
	firstLine string
	haveFirst bool
}

var _ Provider = (*Text)(nil)

// OpenForReading opens path for reading. bcf selects the block
// container framing over plain text.
func OpenForReading(ctx context.Context, path string, bcf bool) (*Text, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "vcfio: open %s", path)
	}
	var r io.Reader = f.Reader(ctx)
	if bcf {
		if r, err = newBlockReader(r); err != nil {
			f.Close(ctx)
			return nil, err
		}
	}
	t := &Text{
		f:       f,
		closer:  f.Close,
		scanner: bufio.NewScanner(r),
		ploidy:  2,
		gtIndex: -1,
	}
	t.scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if err := t.readHeader(); err != nil {
		f.Close(ctx)
		return nil, err
	}
	return t, nil
}

// CreateForWriting opens path for writing NoSamples()==len(samples),
// ploidy-haplotype records. bcf/level select the block container
// framing and its flate level; level is ignored when bcf is false.
func CreateForWriting(ctx context.Context, path string, samples []string, ploidy int, bcf bool, level int) (*Text, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "vcfio: create %s", path)
	}
	var w io.Writer = f.Writer(ctx)
	flush := func() error { return nil }
	if bcf {
		bw, err := newBlockWriter(w, level)
		if err != nil {
			f.Close(ctx)
			return nil, err
		}
		w = bw
		flush = bw.Close
	}
	t := &Text{
		f:       f,
		closer:  f.Close,
		w:       bufio.NewWriter(w),
		flush:   flush,
		samples: append([]string(nil), samples...),
		ploidy:  ploidy,
	}
	return t, nil
}

func (t *Text) readHeader() error {
	var buf bytes.Buffer
	seen := make(map[uint64]string)
	for t.scanner.Scan() {
		line := t.scanner.Text()
		if strings.HasPrefix(line, "##") {
			buf.WriteString(line)
			buf.WriteByte('\n')
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			buf.WriteString(line)
			buf.WriteByte('\n')
			cols := strings.Split(line, "\t")
			if len(cols) > 9 {
				t.samples = append([]string(nil), cols[9:]...)
			}
			for _, s := range t.samples {
				h := seahash.Sum64([]byte(s))
				if dup, ok := seen[h]; ok && dup == s {
					return errors.Errorf("vcfio: duplicate sample name %q in header", s)
				}
				seen[h] = s
			}
			t.header = buf.Bytes()
			return nil
		}
		return errors.New("vcfio: VCF body reached before #CHROM header line")
	}
	if err := t.scanner.Err(); err != nil {
		return errors.Wrap(err, "vcfio: read header")
	}
	return errors.New("vcfio: missing #CHROM header line")
}

func (t *Text) NoSamples() int          { return len(t.samples) }
func (t *Text) Ploidy() int             { return t.ploidy }
func (t *Text) GetSamplesList() []string { return t.samples }
func (t *Text) GetHeader() []byte       { return t.header }
func (t *Text) SetHeader(h []byte)      { t.header = h }

func (t *Text) writeHeaderOnce() error {
	if t.haveFirst {
		return nil
	}
	t.haveFirst = true
	if len(t.header) == 0 {
		t.header = []byte("##fileformat=VCFv4.2\n")
	}
	// An installed header may carry another file's #CHROM line (a DB
	// header names every DB sample); the column line is always rebuilt
	// from this writer's own sample list instead.
	header := t.header
	if i := bytes.Index(header, []byte("\n#CHROM")); i >= 0 {
		header = header[:i+1]
	} else if bytes.HasPrefix(header, []byte("#CHROM")) {
		header = nil
	}
	if _, err := t.w.Write(header); err != nil {
		return errors.Wrap(err, "vcfio: write header")
	}
	cols := []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT"}
	cols = append(cols, t.samples...)
	if _, err := t.w.WriteString(strings.Join(cols, "\t") + "\n"); err != nil {
		return errors.Wrap(err, "vcfio: write column header")
	}
	return nil
}

// GetVariant reads the next data line and decodes its descriptor and
// per-haplotype genotype codes. Ploidy is inferred from the first data
// line's first GT field the first time it is called; until then Ploidy
// reports 2.
func (t *Text) GetVariant(ctx context.Context) (variant.Desc, []variant.GenotypeByte, bool, error) {
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return variant.Desc{}, nil, false, errors.Wrap(err, "vcfio: read variant")
		}
		return variant.Desc{}, nil, false, nil
	}
	line := t.scanner.Text()
	cols := strings.Split(line, "\t")
	if len(cols) < 9 {
		return variant.Desc{}, nil, false, errors.Errorf("vcfio: malformed VCF line (only %d columns): %q", len(cols), line)
	}

	pos, err := strconv.ParseInt(cols[1], 10, 64)
	if err != nil {
		return variant.Desc{}, nil, false, errors.Wrapf(err, "vcfio: malformed POS %q", cols[1])
	}
	desc := variant.Desc{
		Chrom:  cols[0],
		Pos:    pos,
		ID:     cols[2],
		Ref:    cols[3],
		Alt:    cols[4],
		Qual:   cols[5],
		Filter: cols[6],
		Info:   cols[7],
	}

	gtIdx := t.gtIndex
	if gtIdx < 0 {
		for i, f := range strings.Split(cols[8], ":") {
			if f == "GT" {
				gtIdx = i
				break
			}
		}
		if gtIdx < 0 {
			return variant.Desc{}, nil, false, errors.Errorf("vcfio: FORMAT field %q has no GT subfield", cols[8])
		}
		t.gtIndex = gtIdx
		if len(cols) > 9 {
			t.ploidy = 2
			if sub := strings.Split(cols[9], ":"); gtIdx < len(sub) && !strings.ContainsAny(sub[gtIdx], "|/") {
				t.ploidy = 1
			}
		}
	}

	sampleCols := cols[9:]
	if len(t.samples) == 0 {
		t.samples = make([]string, len(sampleCols))
	} else if len(sampleCols) != len(t.samples) {
		return variant.Desc{}, nil, false, errors.Errorf("vcfio: expected %d samples, line has %d", len(t.samples), len(sampleCols))
	}

	// One packed genotype byte per sample (both haplotypes for
	// diploid calls), matching the wire convention gtfile's column
	// flattening expects.
	genotypes := make([]variant.GenotypeByte, len(sampleCols))
	for i, sc := range sampleCols {
		subfields := strings.Split(sc, ":")
		if gtIdx >= len(subfields) {
			return variant.Desc{}, nil, false, errors.Errorf("vcfio: sample column %q missing GT subfield", sc)
		}
		g, err := parseGT(subfields[gtIdx], t.ploidy)
		if err != nil {
			return variant.Desc{}, nil, false, err
		}
		genotypes[i] = g
	}
	return desc, genotypes, true, nil
}

// SetVariant writes one data line built from desc and genotypes.
func (t *Text) SetVariant(ctx context.Context, desc variant.Desc, genotypes []variant.GenotypeByte) error {
	if err := t.writeHeaderOnce(); err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString(desc.Chrom)
	buf.WriteByte('\t')
	buf.WriteString(strconv.FormatInt(desc.Pos, 10))
	buf.WriteByte('\t')
	buf.WriteString(orDot(desc.ID))
	buf.WriteByte('\t')
	buf.WriteString(orDot(desc.Ref))
	buf.WriteByte('\t')
	buf.WriteString(orDot(desc.Alt))
	buf.WriteByte('\t')
	buf.WriteString(orDot(desc.Qual))
	buf.WriteByte('\t')
	buf.WriteString(orDot(desc.Filter))
	buf.WriteByte('\t')
	buf.WriteString(orDot(desc.Info))
	buf.WriteString("\tGT")

	for i := 0; i < len(t.samples); i++ {
		buf.WriteByte('\t')
		buf.WriteString(formatGT(genotypes[i], t.ploidy))
	}
	buf.WriteByte('\n')
	if _, err := t.w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "vcfio: write variant")
	}
	return nil
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}

// SniffPloidy peeks the first data line of a plain-text VCF at path and
// reports the ploidy its first sample's GT field implies (2 if it
// carries a "|" or "/" separator, 1 otherwise), without disturbing any
// later OpenForReading call. The CLI uses this to learn the ploidy
// compress-db needs up front, since nothing in the file header declares
// it explicitly.
func SniffPloidy(ctx context.Context, path string) (int, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return 0, errors.Wrapf(err, "vcfio: open %s", path)
	}
	defer f.Close(ctx)

	scanner := bufio.NewScanner(f.Reader(ctx))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var gtIdx = -1
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 10 {
			return 0, errors.Errorf("vcfio: malformed VCF line (only %d columns): %q", len(cols), line)
		}
		if gtIdx < 0 {
			for i, f := range strings.Split(cols[8], ":") {
				if f == "GT" {
					gtIdx = i
					break
				}
			}
			if gtIdx < 0 {
				return 0, errors.Errorf("vcfio: FORMAT field %q has no GT subfield", cols[8])
			}
		}
		subfields := strings.Split(cols[9], ":")
		if gtIdx >= len(subfields) {
			return 0, errors.Errorf("vcfio: sample column %q missing GT subfield", cols[9])
		}
		if strings.ContainsAny(subfields[gtIdx], "|/") {
			return 2, nil
		}
		return 1, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, "vcfio: sniff ploidy")
	}
	return 0, errors.New("vcfio: no data lines to sniff ploidy from")
}

// Close flushes and releases the underlying file.
func (t *Text) Close(ctx context.Context) error {
	if t.w != nil {
		if err := t.writeHeaderOnce(); err != nil {
			return err
		}
		if err := t.w.Flush(); err != nil {
			return errors.Wrap(err, "vcfio: flush writer")
		}
		if t.flush != nil {
			if err := t.flush(); err != nil {
				return errors.Wrap(err, "vcfio: flush block container")
			}
		}
	}
	return t.closer(ctx)
}
