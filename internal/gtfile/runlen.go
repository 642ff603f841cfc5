package gtfile

import (
	"math/bits"

	"github.com/refresh-bio/gtshark/internal/ctxmap"
	"github.com/refresh-bio/gtshark/internal/pbwt"
	"github.com/refresh-bio/gtshark/internal/rangecoder"
)

// Context tags occupy the top nibble of the 64-bit context key; the
// rest is payload specific to each sub-model. Disjoint tags let every
// sub-model share one context map (per spec, "the context map owns
// every model it contains" — one map, not one per tag).
const (
	tagSymbol uint64 = 1 << 60
	tagPrefix uint64 = 2 << 60
	tagSuffix uint64 = 3 << 60
	tagLarge1 uint64 = 4 << 60
	tagLarge2 uint64 = 5 << 60
	tagLarge3 uint64 = 6 << 60
)

const (
	symbolMask uint64 = 0xFFFF  // 4 symbols of history, 4 bits each
	prefixMask uint64 = 0xFFFFF // 5 fields of history, 4 bits each

	modelMaxLog    = 16
	modelIncrement = 1
)

// runCoder holds the context map and the two running context
// registers (§4.4) shared by every run emitted for one gt stream. One
// instance serves either the encode or the decode direction — the
// Model type is symmetric.
type runCoder struct {
	models    *ctxmap.Map[*rangecoder.Model]
	ctxSymbol uint64
	ctxPrefix uint64
}

func newRunCoder() *runCoder {
	return &runCoder{models: ctxmap.New[*rangecoder.Model]()}
}

// resetColumn clears the running contexts between variants, per §4.4
// step 4 ("Reset ctx_symbol, ctx_prefix between variants").
func (rc *runCoder) resetColumn() {
	rc.ctxSymbol = 0
	rc.ctxPrefix = 0
}

func (rc *runCoder) modelFor(ctx uint64, k int) *rangecoder.Model {
	if m, ok := rc.models.Find(ctx); ok {
		return m
	}
	m := rangecoder.NewModel(k, modelMaxLog, nil, modelIncrement)
	rc.models.Insert(ctx, m)
	return m
}

// prefixClass is the shared prefix/suffix split used by both encode
// and decode: prefix 0 and 1 represent length 0 and 1 exactly; prefix
// p in [2,9] represents length in [2^(p-1), 2^p - 1] via a (p-1)-bit
// suffix; prefix 10 escapes to an absolute 3-byte big-endian length.
func prefixClass(length uint32) (prefix int, suffix uint32, suffixBits uint) {
	if length == 0 {
		return 0, 0, 0
	}
	bl := bits.Len32(length)
	if bl == 1 {
		return 1, 0, 0
	}
	if bl-1 >= 10 {
		return 10, 0, 0
	}
	return bl, length - (1 << uint(bl-1)), uint(bl - 1)
}

// encodeRun emits one RLE run's symbol and length under the running
// contexts, per §4.4.
func (rc *runCoder) encodeRun(enc *rangecoder.Encoder, r pbwt.Run) error {
	symModel := rc.modelFor(rc.ctxSymbol|tagSymbol, pbwt.Sigma)
	if err := symModel.Encode(enc, int(r.Symbol)); err != nil {
		return err
	}
	rc.ctxSymbol = ((rc.ctxSymbol << 4) | uint64(r.Symbol)) & symbolMask
	rc.ctxPrefix = ((rc.ctxPrefix << 4) | uint64(r.Symbol)) & prefixMask

	prefix, suffix, suffixBits := prefixClass(r.Length)
	prefixModel := rc.modelFor(rc.ctxPrefix|tagPrefix, 11)
	if err := prefixModel.Encode(enc, prefix); err != nil {
		return err
	}

	switch {
	case prefix < 2:
		// value fully determined by prefix itself.
	case prefix < 10:
		sufCtx := tagSuffix | (uint64(r.Symbol) << 8) | uint64(prefix)
		sufModel := rc.modelFor(sufCtx, 1<<suffixBits)
		if err := sufModel.Encode(enc, int(suffix)); err != nil {
			return err
		}
	default:
		b0 := byte(r.Length >> 16)
		b1 := byte(r.Length >> 8)
		b2 := byte(r.Length)
		m0 := rc.modelFor(tagLarge1|(uint64(r.Symbol)<<16), 256)
		if err := m0.Encode(enc, int(b0)); err != nil {
			return err
		}
		m1 := rc.modelFor(tagLarge2|(uint64(r.Symbol)<<16)|uint64(b0), 256)
		if err := m1.Encode(enc, int(b1)); err != nil {
			return err
		}
		m2 := rc.modelFor(tagLarge3|(uint64(r.Symbol)<<16)|uint64(b0)<<8|uint64(b1), 256)
		if err := m2.Encode(enc, int(b2)); err != nil {
			return err
		}
	}

	rc.ctxPrefix = ((rc.ctxPrefix << 4) | uint64(prefix)) & prefixMask
	return nil
}

// decodeRun is encodeRun's inverse.
func (rc *runCoder) decodeRun(dec *rangecoder.Decoder) (pbwt.Run, error) {
	symModel := rc.modelFor(rc.ctxSymbol|tagSymbol, pbwt.Sigma)
	symbol, err := symModel.Decode(dec)
	if err != nil {
		return pbwt.Run{}, err
	}
	rc.ctxSymbol = ((rc.ctxSymbol << 4) | uint64(symbol)) & symbolMask
	rc.ctxPrefix = ((rc.ctxPrefix << 4) | uint64(symbol)) & prefixMask

	prefixModel := rc.modelFor(rc.ctxPrefix|tagPrefix, 11)
	prefix, err := prefixModel.Decode(dec)
	if err != nil {
		return pbwt.Run{}, err
	}

	var length uint32
	switch {
	case prefix < 2:
		length = uint32(prefix)
	case prefix < 10:
		suffixBits := uint(prefix - 1)
		sufCtx := tagSuffix | (uint64(symbol) << 8) | uint64(prefix)
		sufModel := rc.modelFor(sufCtx, 1<<suffixBits)
		suffix, err := sufModel.Decode(dec)
		if err != nil {
			return pbwt.Run{}, err
		}
		length = (1 << suffixBits) + uint32(suffix)
	default:
		m0 := rc.modelFor(tagLarge1|(uint64(symbol)<<16), 256)
		b0, err := m0.Decode(dec)
		if err != nil {
			return pbwt.Run{}, err
		}
		m1 := rc.modelFor(tagLarge2|(uint64(symbol)<<16)|uint64(b0), 256)
		b1, err := m1.Decode(dec)
		if err != nil {
			return pbwt.Run{}, err
		}
		m2 := rc.modelFor(tagLarge3|(uint64(symbol)<<16)|uint64(b0)<<8|uint64(b1), 256)
		b2, err := m2.Decode(dec)
		if err != nil {
			return pbwt.Run{}, err
		}
		length = uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2)
	}

	rc.ctxPrefix = ((rc.ctxPrefix << 4) | uint64(prefix)) & prefixMask
	return pbwt.Run{Symbol: uint8(symbol), Length: length}, nil
}

// encodeRuns emits runs with the last run's length rewritten to 0,
// per the wire convention (§3, "RLE run").
func (rc *runCoder) encodeRuns(enc *rangecoder.Encoder, runs []pbwt.Run) error {
	rc.resetColumn()
	for i, r := range runs {
		if i == len(runs)-1 {
			r.Length = 0
		}
		if err := rc.encodeRun(enc, r); err != nil {
			return err
		}
	}
	return nil
}

// decodeRuns reads runs until their lengths sum to noItems, restoring
// the final run's true length from the remainder.
func (rc *runCoder) decodeRuns(dec *rangecoder.Decoder, noItems uint32) ([]pbwt.Run, error) {
	rc.resetColumn()
	var runs []pbwt.Run
	var total uint32
	for total < noItems {
		r, err := rc.decodeRun(dec)
		if err != nil {
			return nil, err
		}
		if r.Length == 0 {
			r.Length = noItems - total
		}
		runs = append(runs, r)
		total += r.Length
	}
	return runs, nil
}
