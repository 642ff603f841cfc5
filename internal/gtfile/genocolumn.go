package gtfile

import "github.com/refresh-bio/gtshark/internal/variant"

// flattenGenotypes expands a length-N packed genotype-byte vector (one
// byte per sample; diploid calls pack both haplotypes) into the
// length-N·ploidy 4-symbol PBWT column (§4.5 step 2). Ploidy 1 masks
// to 2 bits; ploidy 2 interleaves the two haplotype fields into two
// column entries; the phased flag is not carried into the column.
func flattenGenotypes(genotypes []variant.GenotypeByte, ploidy int) []uint8 {
	col := make([]uint8, len(genotypes)*ploidy)
	if ploidy == 1 {
		for i, g := range genotypes {
			col[i] = variant.Allele0(g)
		}
		return col
	}
	for i, g := range genotypes {
		col[2*i] = variant.Allele0(g)
		col[2*i+1] = variant.Allele1(g)
	}
	return col
}

// restoreGenotypes is flattenGenotypes's inverse. For ploidy 2, pairs
// of adjacent column entries are merged back into one diploid
// genotype byte, marked phased by convention (§3, "Read flow mirrors
// this... bit 4 set to 1 = phased for ploidy 2, by convention").
func restoreGenotypes(col []uint8, ploidy int) []variant.GenotypeByte {
	if ploidy == 1 {
		out := make([]variant.GenotypeByte, len(col))
		for i, s := range col {
			out[i] = variant.MakeHaploidGenotype(s)
		}
		return out
	}
	out := make([]variant.GenotypeByte, len(col)/ploidy)
	for i := range out {
		out[i] = variant.MakeGenotype(col[2*i], col[2*i+1])
	}
	return out
}
