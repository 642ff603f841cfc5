// Package variant defines the VCF/BCF-level record descriptor shared by
// the compressed-DB codec and the sample codec, along with the
// ordering and equality rules the extra-variants merge depends on.
package variant

import farm "github.com/dgryski/go-farm"

// Desc is a variant descriptor. Fields are kept as plain strings (the
// nine textual VCF columns, minus the genotype columns themselves);
// they cross the LZMA boundary as opaque NUL-delimited byte blobs, so
// nothing here interprets their contents beyond chrom/pos/alt.
type Desc struct {
	Chrom  string
	Pos    int64
	ID     string
	Ref    string
	Alt    string
	Qual   string
	Filter string
	Info   string
}

// Equal implements the merge equality rule: only chrom and pos matter.
// This is intentionally asymmetric with Less (which also considers
// alt) — the asymmetry is load-bearing for extra-variants alignment,
// where two records at the same site but different ALT decomposition
// must still be treated as "the same variant" for merge purposes.
func (d Desc) Equal(o Desc) bool {
	if d.Chrom == "" && o.Chrom == "" {
		return true
	}
	return d.Chrom == o.Chrom && d.Pos == o.Pos
}

// Less implements the merge ordering rule: chrom (empty sorts last),
// then pos, then alt.
func (d Desc) Less(o Desc) bool {
	if d.Chrom != o.Chrom {
		if d.Chrom == "" {
			return false
		}
		if o.Chrom == "" {
			return true
		}
		return d.Chrom < o.Chrom
	}
	if d.Pos != o.Pos {
		return d.Pos < o.Pos
	}
	return d.Alt < o.Alt
}

// Fingerprint returns a fast, non-cryptographic 64-bit hash of the
// descriptor's merge-relevant fields (chrom, pos, alt), used only in
// the write-time monotonicity check's error message — never for
// anything format-visible.
func (d Desc) Fingerprint() uint64 {
	h := farm.Hash64([]byte(d.Chrom))
	h = farm.Hash64WithSeed([]byte(d.Alt), h)
	return h ^ uint64(d.Pos)*0x9e3779b97f4a7c13
}

// GenotypeByte packs one sample's genotype at one variant: bits 0-1 are
// allele0, bits 2-3 are allele1 (diploid only), bit 4 is the phased
// flag (diploid only). Allele values are 0=ref, 1=alt, 2=multi,
// 3=missing.
type GenotypeByte = uint8

const (
	AlleleRef = iota
	AlleleAlt
	AlleleMulti
	AlleleMissing
)

// PhasedBit is set in a GenotypeByte when the diploid call is phased.
const PhasedBit = 1 << 4

// Allele0 extracts the first haplotype's allele code.
func Allele0(g GenotypeByte) uint8 { return g & 0b11 }

// Allele1 extracts the second haplotype's allele code (diploid only).
func Allele1(g GenotypeByte) uint8 { return (g >> 2) & 0b11 }

// Phased reports whether the diploid call carries the phased bit.
func Phased(g GenotypeByte) bool { return g&PhasedBit != 0 }

// MakeGenotype packs a diploid call, always marking it phased — the
// convention the compressed-DB codec uses on decode, since phasing
// information is not itself carried through the PBWT column.
func MakeGenotype(a0, a1 uint8) GenotypeByte {
	return PhasedBit | (a0 & 0b11) | ((a1 & 0b11) << 2)
}

// MakeHaploidGenotype packs a single-haplotype call.
func MakeHaploidGenotype(a0 uint8) GenotypeByte {
	return a0 & 0b11
}
