package vcfio

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/variant"
)

// alleleCode maps one VCF allele field ("0", "1", "2", ".", or any
// higher REF/ALT index) onto the 2-bit codes the PBWT column uses.
// Everything beyond the first ALT is folded into AlleleMulti, per the
// spec's "multi-allele ALT decomposition" normalization.
func alleleCode(field string) (uint8, error) {
	if field == "." {
		return variant.AlleleMissing, nil
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, errors.Wrapf(err, "vcfio: malformed allele %q", field)
	}
	switch {
	case n == 0:
		return variant.AlleleRef, nil
	case n == 1:
		return variant.AlleleAlt, nil
	default:
		return variant.AlleleMulti, nil
	}
}

func alleleField(code uint8) string {
	switch code {
	case variant.AlleleRef:
		return "0"
	case variant.AlleleAlt:
		return "1"
	case variant.AlleleMulti:
		return "2"
	default:
		return "."
	}
}

// parseGT decodes one sample's GT subfield (e.g. "0|1", "0/1", "1",
// ".") into a packed variant.GenotypeByte for the given ploidy.
func parseGT(field string, ploidy int) (variant.GenotypeByte, error) {
	sep := strings.IndexAny(field, "|/")
	switch {
	case ploidy == 1:
		a0, err := alleleCode(field)
		if err != nil {
			return 0, err
		}
		return variant.MakeHaploidGenotype(a0), nil
	case sep < 0:
		return 0, errors.Errorf("vcfio: diploid GT field %q missing a separator", field)
	default:
		a0, err := alleleCode(field[:sep])
		if err != nil {
			return 0, err
		}
		a1, err := alleleCode(field[sep+1:])
		if err != nil {
			return 0, err
		}
		g := variant.MakeGenotype(a0, a1)
		if field[sep] == '/' {
			g &^= variant.PhasedBit
		}
		return g, nil
	}
}

// formatGT is parseGT's inverse, emitting "|" for phased and "/" for
// unphased diploid calls; diploid calls restored from the DB always
// carry the phased bit, so they come out as "|".
func formatGT(g variant.GenotypeByte, ploidy int) string {
	if ploidy == 1 {
		return alleleField(variant.Allele0(g))
	}
	sep := "|"
	if !variant.Phased(g) {
		sep = "/"
	}
	return alleleField(variant.Allele0(g)) + sep + alleleField(variant.Allele1(g))
}
