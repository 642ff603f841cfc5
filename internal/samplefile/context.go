package samplefile

import (
	"math/bits"

	"github.com/refresh-bio/gtshark/internal/pbwt"
)

// Flag codes for the extra-variants list-merge side channel (§4.6,
// §4.6.3).
const (
	flagMatch      = 0
	flagSampleOnly = 1
	flagDBOnly     = 2
	flagBatchEnd   = 3
	flagEOF        = 4
)

// sampleBatchSize mirrors the pipeline driver's double-buffer size
// (§4.7); the extra-variants flag stream emits a batch-end marker at
// the same cadence so the decoder's drain matches the encoder's.
const sampleBatchSize = 8192

// flagCtxMask keeps the flag-stream context to the last six flags (12
// bits, 2 per flag), per §3's ctx_flag description.
const flagCtxMask uint64 = 0xFFF

func nextFlagCtx(ctx uint64, flag uint8) uint64 {
	return ((ctx << 2) | uint64(flag)) & flagCtxMask
}

// residual model parameters, per §4.6.1: counter cap 2^13, and the
// higher-traffic increment of 4 documented in rangecoder.NewModel.
const (
	residualMaxLog    = 13
	residualIncrement = 4
)

// tagPredLead/tagSuccLead occupy the top two bits of the residual
// context, per §4.6.1 — a different packing convention from the
// compressed-DB codec's four-bit tag scheme, since this layout is
// specified bit-for-bit rather than left to a shared tagging design.
const (
	tagPredLead uint64 = 1 << 62
	tagSuccLead uint64 = 1 << 63
)

// log2OrNeg1 is bits.Len32(v)-1, treating 0 as if its log were -1 so
// the bucket formulas below stay well-defined at the empty-run/zero-
// counter edge case.
func log2OrNeg1(v uint32) int {
	if v == 0 {
		return -1
	}
	return bits.Len32(v) - 1
}

func lenBucket(l uint32) uint64 {
	return uint64((log2OrNeg1(l) + 1) / 4)
}

func neighborBucket(c uint32) uint64 {
	return uint64((log2OrNeg1(c) + 3) / 4)
}

// residualContext packs the 4-symbol sample-residual model's context
// from the two runs bracketing the sample's estimated PBWT position
// and its neighbor-agreement counters, per §4.6.1.
func residualContext(runs [2]pbwt.Run, noPredSame, noSuccSame uint32) uint64 {
	ctx := lenBucket(runs[0].Length) | uint64(runs[0].Symbol)<<8
	ctx |= lenBucket(runs[1].Length)<<16 | uint64(runs[1].Symbol)<<24
	switch {
	case noPredSame > noSuccSame:
		ctx |= tagPredLead | neighborBucket(noPredSame)<<32
	case noPredSame < noSuccSame:
		ctx |= tagSuccLead | neighborBucket(noSuccSame)<<40
	}
	return ctx
}
