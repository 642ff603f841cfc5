package gtfile

// Descriptor column order, fixed on the wire (§4.5): meta carries the
// format magic only (the integrity digest is a separate trailer after
// the eleven blocks); header and samples
// are single blobs; the rest are one NUL-delimited string per variant.
const (
	colMeta = iota
	colHeader
	colSamples
	colChrom
	colPos
	colID
	colRef
	colAlt
	colQual
	colFilter
	colInfo
	numColumns
)

var columnNames = [numColumns]string{
	colMeta:    "meta",
	colHeader:  "header",
	colSamples: "samples",
	colChrom:   "chrom",
	colPos:     "pos",
	colID:      "id",
	colRef:     "ref",
	colAlt:     "alt",
	colQual:    "qual",
	colFilter:  "filter",
	colInfo:    "info",
}

// metaMagic guards the db/gt file pair's format version, recovered
// from the original's params.h store_params/load_params.
var metaMagic = [4]byte{'T', 'G', 'C', '2'}
