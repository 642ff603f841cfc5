package rangecoder

import "github.com/pkg/errors"

// ErrCorruptStream is returned by Decode when the coded value names a
// symbol outside the model's alphabet — the lazy corruption signal the
// format relies on (bit errors surface only here, never earlier).
var ErrCorruptStream = errors.New("rangecoder: decoded symbol out of alphabet")

// Model is a per-context adaptive frequency model shared by an encoder
// or a decoder side (never both at once). It keeps a counter per
// symbol, rescaling (halving) whenever the running total would exceed
// 1<<maxLog, so no counter — or their sum — ever overflows the cap.
//
// A Model is owned by exactly one context-map bucket for its lifetime;
// the range coder it codes against outlives every model built around
// it.
type Model struct {
	freq      []uint32
	total     uint32
	maxTotal  uint32
	increment uint32
}

// NewModel builds a model over an alphabet of size k, with counters
// capped so their sum never exceeds 1<<maxLog. init, if non-nil, seeds
// the initial per-symbol frequencies (len(init) must equal k);
// otherwise every symbol starts at frequency 1. increment is the
// amount a symbol's counter grows by each time it is coded — GTShark's
// sub-models use 1 for the run-length/symbol streams and 4 for the
// higher-traffic sample-residual and flag streams.
func NewModel(k int, maxLog uint, init []uint32, increment uint32) *Model {
	m := &Model{
		freq:      make([]uint32, k),
		maxTotal:  uint32(1) << maxLog,
		increment: increment,
	}
	if init != nil {
		copy(m.freq, init)
	} else {
		for i := range m.freq {
			m.freq[i] = 1
		}
	}
	for _, f := range m.freq {
		m.total += f
	}
	return m
}

func (m *Model) rescaleIfNeeded() {
	if m.total <= m.maxTotal {
		return
	}
	m.total = 0
	for i, f := range m.freq {
		f = (f + 1) >> 1
		m.freq[i] = f
		m.total += f
	}
}

func (m *Model) bump(symbol int) {
	m.freq[symbol] += m.increment
	m.total += m.increment
	m.rescaleIfNeeded()
}

// Encode codes symbol under this model's current statistics and
// updates them.
func (m *Model) Encode(enc *Encoder, symbol int) error {
	var cum uint32
	for i := 0; i < symbol; i++ {
		cum += m.freq[i]
	}
	if err := enc.Encode(cum, m.freq[symbol], m.total); err != nil {
		return err
	}
	m.bump(symbol)
	return nil
}

// Decode decodes one symbol under this model's current statistics and
// updates them. Returns ErrCorruptStream if the coded value does not
// land in any symbol's interval.
func (m *Model) Decode(dec *Decoder) (int, error) {
	freqVal := dec.GetFreq(m.total)

	var cum uint32
	symbol := -1
	for i, f := range m.freq {
		if freqVal < cum+f {
			symbol = i
			break
		}
		cum += f
	}
	if symbol < 0 {
		return 0, ErrCorruptStream
	}
	if err := dec.Decode(cum, m.freq[symbol], m.total); err != nil {
		return 0, err
	}
	m.bump(symbol)
	return symbol, nil
}
