// Package rangecoder implements a binary carry-propagating arithmetic
// coder over a 32-bit range, normalized one byte at a time. Carry
// propagation is handled with a pending-byte counter rather than
// explicit bit-stuffing, following the classic LZMA range coder design.
package rangecoder

import (
	"io"

	"github.com/pkg/errors"
)

const topValue = uint32(1) << 24

// Encoder is the encode side of the range coder. It owns no model state;
// models are adaptive wrappers constructed around a *Encoder (see
// Model) and call Encode directly.
type Encoder struct {
	w         io.ByteWriter
	low       uint64
	rng       uint32
	cache     byte
	cacheSize int64
}

// NewEncoder returns an Encoder that writes to w. Start must be called
// before the first Encode.
func NewEncoder(w io.ByteWriter) *Encoder {
	return &Encoder{w: w}
}

// Start resets the encoder state. Must be called exactly once before
// the first Encode call.
func (e *Encoder) Start() {
	e.low = 0
	e.rng = 0xFFFFFFFF
	e.cache = 0xFF
	e.cacheSize = 1
}

func (e *Encoder) shiftLow() error {
	if uint32(e.low>>32) != 0 || e.low < 0xFF000000 {
		temp := e.cache
		carry := byte(e.low >> 32)
		for {
			if err := e.w.WriteByte(temp + carry); err != nil {
				return err
			}
			temp = 0xFF
			e.cacheSize--
			if e.cacheSize == 0 {
				break
			}
		}
		e.cache = byte(e.low >> 24)
	}
	e.cacheSize++
	e.low = (e.low << 8) & 0xFFFFFFFF
	return nil
}

// Encode codes a symbol given as a cumulative-frequency interval
// [cumFreq, cumFreq+freq) out of a total of totFreq.
func (e *Encoder) Encode(cumFreq, freq, totFreq uint32) error {
	r := e.rng / totFreq
	e.low += uint64(r) * uint64(cumFreq)
	e.rng = r * freq
	for e.rng < topValue {
		e.rng <<= 8
		if err := e.shiftLow(); err != nil {
			return err
		}
	}
	return nil
}

// End flushes the remaining state. Must be called exactly once after
// the last Encode.
func (e *Encoder) End() error {
	for i := 0; i < 5; i++ {
		if err := e.shiftLow(); err != nil {
			return err
		}
	}
	return nil
}

// Decoder is the decode side of the range coder.
type Decoder struct {
	r    io.ByteReader
	rng  uint32
	code uint32
}

// NewDecoder returns a Decoder reading from r. Start must be called
// before the first Decode.
func NewDecoder(r io.ByteReader) *Decoder {
	return &Decoder{r: r}
}

// Start primes the decoder by reading the 5 leading bytes the encoder's
// Start/shiftLow sequence always produces (the first is always 0xFF,
// the encoder's initial cache byte, and carries no information).
func (d *Decoder) Start() error {
	d.rng = 0xFFFFFFFF
	d.code = 0
	for i := 0; i < 5; i++ {
		b, err := d.r.ReadByte()
		if err != nil {
			return errors.Wrap(err, "range decoder: priming read failed")
		}
		d.code = (d.code << 8) | uint32(b)
	}
	return nil
}

// GetFreq returns the value identifying which symbol's
// cumulative-frequency interval contains the coded value. A valid
// stream always yields a value in [0, totFreq); a larger value means
// the stream is corrupt, which Model.Decode reports as
// ErrCorruptStream. The caller must follow with Decode using the
// matching interval.
func (d *Decoder) GetFreq(totFreq uint32) uint32 {
	d.rng /= totFreq
	return d.code / d.rng
}

// Decode consumes the interval [cumFreq, cumFreq+freq) identified by a
// prior GetFreq call.
func (d *Decoder) Decode(cumFreq, freq, totFreq uint32) error {
	d.code -= cumFreq * d.rng
	d.rng *= freq
	for d.rng < topValue {
		b, err := d.r.ReadByte()
		if err != nil {
			return errors.Wrap(err, "range decoder: normalization read failed")
		}
		d.code = (d.code << 8) | uint32(b)
		d.rng <<= 8
	}
	return nil
}

// End is a no-op kept for symmetry with Encoder.End and the coder
// lifecycle described by the format (started on open, ended on close).
func (d *Decoder) End() error {
	return nil
}
