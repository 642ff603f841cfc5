// Package lzmaio is the LZMA provider the compressed-DB and sample
// codecs delegate textual column compression to. It is a thin,
// explicit seam: the core codecs call Compress/Decompress and the
// history-sharing pair without knowing which LZMA implementation backs
// them.
package lzmaio

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Provider is the LZMA collaborator the codecs are written against.
type Provider interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	CompressWithHistory(history, target []byte, level int) ([]byte, error)
	DecompressWithHistory(history, encoded []byte) ([]byte, error)
}

// XZ is the default Provider, backed by github.com/ulikunitz/xz — the
// pack carries no LZMA library of its own, so this one real,
// widely-used implementation is named directly rather than grounded in
// a retrieved example.
type XZ struct{}

// presetDictCap maps a 0..9 compression level onto a dictionary
// capacity, the xz package's nearest equivalent to LZMA's classic
// preset levels. Level 0 means "store": Compress returns data
// unmodified with a one-byte store marker, matching the CLI's
// "-c 0 = uncompressed marker" contract.
func presetDictCap(level int) int {
	switch {
	case level <= 0:
		return 0
	case level > 9:
		level = 9
	}
	return 1 << (14 + uint(level)) // 32KiB (level 1) .. 8MiB (level 9)
}

const (
	tagStore = 0
	tagXZ    = 1
)

// Compress LZMA-compresses data at the given 0..9 preset level.
func (XZ) Compress(data []byte, level int) ([]byte, error) {
	if level <= 0 {
		out := make([]byte, 0, len(data)+1)
		out = append(out, tagStore)
		out = append(out, data...)
		return out, nil
	}

	var buf bytes.Buffer
	buf.WriteByte(tagXZ)
	cfg := xz.WriterConfig{DictCap: presetDictCap(level)}
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "lzmaio: create xz writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "lzmaio: xz compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lzmaio: close xz writer")
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func (XZ) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	tag, body := data[0], data[1:]
	switch tag {
	case tagStore:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case tagXZ:
		r, err := xz.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "lzmaio: create xz reader")
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "lzmaio: xz decompress")
		}
		return out, nil
	default:
		return nil, errors.Errorf("lzmaio: unrecognized block tag %d", tag)
	}
}

// rawLZMA2 compresses data with the unframed lzma2 codec, used only as
// an internal helper by the history-sharing pair below (it needs a
// deterministic byte-for-byte compressor it can run twice and diff,
// which the xz container's embedded metadata/CRC would perturb).
func rawLZMA2(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter2(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "lzmaio: create lzma2 writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "lzmaio: lzma2 compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lzmaio: close lzma2 writer")
	}
	return buf.Bytes(), nil
}

func rawLZMA2Decode(data []byte) ([]byte, error) {
	r, err := lzma.NewReader2(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "lzmaio: create lzma2 reader")
	}
	return io.ReadAll(r)
}

// sharedPrefixFrom60 is where the history-sharing scheme starts looking
// for divergence, matching the format's "from byte offset 60 onward"
// rule: the lzma2 stream header plus a few chunk-control bytes are
// always identical for the history-alone and history+target streams
// regardless of target content, so comparing from byte 60 skips that
// fixed prefix and the stored 60-byte head absorbs it.
const sharedPrefixFrom60 = 60

// CompressWithHistory compresses history alone and history+NUL+target
// together at the same settings, then stores only the combined
// stream's first 60 bytes, a count of how many more leading bytes
// match the history-alone stream, and the tail from the point of
// divergence. The decoder reconstructs by splicing the history
// stream's middle bytes back in.
func (XZ) CompressWithHistory(history, target []byte, level int) ([]byte, error) {
	combinedInput := make([]byte, 0, len(history)+1+len(target))
	combinedInput = append(combinedInput, history...)
	combinedInput = append(combinedInput, 0)
	combinedInput = append(combinedInput, target...)

	histStream, err := rawLZMA2(history)
	if err != nil {
		return nil, err
	}
	combinedStream, err := rawLZMA2(combinedInput)
	if err != nil {
		return nil, err
	}

	head := sharedPrefixFrom60
	if head > len(combinedStream) {
		head = len(combinedStream)
	}

	shared := 0
	for sharedPrefixFrom60+shared < len(histStream) &&
		sharedPrefixFrom60+shared < len(combinedStream) &&
		histStream[sharedPrefixFrom60+shared] == combinedStream[sharedPrefixFrom60+shared] {
		shared++
	}

	var out bytes.Buffer
	writeUint32LE(&out, uint32(shared))
	writeUint32LE(&out, uint32(head))
	out.Write(combinedStream[:head])
	out.Write(combinedStream[head+shared:])
	return out.Bytes(), nil
}

// DecompressWithHistory reverses CompressWithHistory given the same
// history bytes the encoder used.
func (XZ) DecompressWithHistory(history, encoded []byte) ([]byte, error) {
	if len(encoded) < 8 {
		return nil, errors.New("lzmaio: history-compressed block too short")
	}
	shared := readUint32LE(encoded[0:4])
	head := readUint32LE(encoded[4:8])
	rest := encoded[8:]

	if int(head) > len(rest) {
		return nil, errors.New("lzmaio: corrupt history-compressed block head length")
	}
	headBytes := rest[:head]
	tail := rest[head:]

	histStream, err := rawLZMA2(history)
	if err != nil {
		return nil, err
	}
	if int(sharedPrefixFrom60+shared) > len(histStream) {
		return nil, errors.New("lzmaio: corrupt history-compressed block shared length")
	}

	var combined bytes.Buffer
	combined.Write(headBytes)
	combined.Write(histStream[sharedPrefixFrom60 : sharedPrefixFrom60+int(shared)])
	combined.Write(tail)

	decoded, err := rawLZMA2Decode(combined.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "lzmaio: decode history-joined stream")
	}

	sep := bytes.IndexByte(decoded, 0)
	if sep < 0 || sep != len(history) {
		return nil, errors.New("lzmaio: history-compressed block history mismatch")
	}
	out := make([]byte, len(decoded)-sep-1)
	copy(out, decoded[sep+1:])
	return out, nil
}

func writeUint32LE(w *bytes.Buffer, v uint32) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
	w.WriteByte(byte(v >> 16))
	w.WriteByte(byte(v >> 24))
}

func readUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
