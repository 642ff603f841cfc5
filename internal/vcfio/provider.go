// Package vcfio is the variant I/O boundary the compressed-DB and
// sample codecs are written against: a Provider yields
// (descriptor, genotype byte vector) pairs on read and accepts the
// same pairs on write, so gtfile/samplefile never see VCF/BCF text or
// binary framing directly.
package vcfio

import (
	"context"

	"github.com/refresh-bio/gtshark/internal/variant"
)

// Provider is a variant-call file, open for either reading or
// writing, never both.
type Provider interface {
	// NoSamples is the number of samples in the file (1 for a
	// single-sample sample-file, N for a DB-building multi-sample
	// VCF).
	NoSamples() int

	// Ploidy is the number of haplotypes per sample, 1 or 2.
	Ploidy() int

	// GetSamplesList returns the sample names in column order.
	GetSamplesList() []string

	// GetHeader returns the raw header bytes (every line up to and
	// including the #CHROM column line), exactly as read. Only
	// meaningful on a reading Provider.
	GetHeader() []byte

	// SetHeader installs the header bytes a writing Provider emits
	// before the first record.
	SetHeader(header []byte)

	// GetVariant reads the next record. ok is false at end of file
	// with no error. genotypes has NoSamples() entries, one packed
	// variant.GenotypeByte per sample (see
	// variant.MakeGenotype/MakeHaploidGenotype).
	GetVariant(ctx context.Context) (desc variant.Desc, genotypes []variant.GenotypeByte, ok bool, err error)

	// SetVariant writes one record.
	SetVariant(ctx context.Context, desc variant.Desc, genotypes []variant.GenotypeByte) error

	// Close flushes and releases the underlying file.
	Close(ctx context.Context) error
}
