package rangecoder

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModelRoundtrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	symbols := make([]int, 5000)
	for i := range symbols {
		// Skewed distribution so rescaling actually triggers.
		switch {
		case rng.Intn(10) < 7:
			symbols[i] = 0
		case rng.Intn(10) < 5:
			symbols[i] = 1
		default:
			symbols[i] = rng.Intn(4)
		}
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.Start()
	encModel := NewModel(4, 13, nil, 4)
	for _, s := range symbols {
		require.NoError(t, encModel.Encode(enc, s))
	}
	require.NoError(t, enc.End())

	dec := NewDecoder(&buf)
	require.NoError(t, dec.Start())
	decModel := NewModel(4, 13, nil, 4)
	for i, want := range symbols {
		got, err := decModel.Decode(dec)
		require.NoError(t, err)
		require.Equalf(t, want, got, "symbol %d", i)
	}
}

func TestModelRescaleKeepsCountersBounded(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.Start()
	m := NewModel(2, 4, nil, 1) // maxTotal = 16, tiny cap to force rescales quickly
	for i := 0; i < 1000; i++ {
		require.NoError(t, m.Encode(enc, i%2))
		require.LessOrEqual(t, m.total, m.maxTotal+m.increment)
	}
	require.NoError(t, enc.End())
}

func TestDecodeOutOfAlphabetIsCorruptionSignal(t *testing.T) {
	// A stream of 0xFF bytes primes code to 0xFFFFFFFF; against a fresh
	// 4-symbol model GetFreq then yields 0xFFFFFFFF / (0xFFFFFFFF/4) = 4,
	// past the alphabet, which Model.Decode must report as corruption
	// rather than panic or pick a symbol.
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xFF}, 16))
	dec := NewDecoder(&buf)
	require.NoError(t, dec.Start())
	m := NewModel(4, 13, nil, 4)
	_, err := m.Decode(dec)
	require.Equal(t, ErrCorruptStream, err)
}
