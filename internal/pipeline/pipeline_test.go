package pipeline

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/variant"
	"github.com/stretchr/testify/require"
)

func makeBatch(n int, offset int) *Batch {
	b := &Batch{}
	for i := 0; i < n; i++ {
		b.Descs = append(b.Descs, variant.Desc{Chrom: "chr1", Pos: int64(offset + i)})
		b.Data = append(b.Data, []byte{byte(offset + i)})
	}
	return b
}

func TestRunRoundtrip(t *testing.T) {
	const batches = 5
	const perBatch = 3

	next := 0
	io := func() (*Batch, bool, error) {
		if next >= batches {
			return &Batch{}, false, nil
		}
		b := makeBatch(perBatch, next*perBatch)
		next++
		return b, true, nil
	}

	transform := func(b *Batch) error {
		for i := range b.Data {
			b.Data[i][0] *= 2
		}
		return nil
	}

	var got []*Batch
	sync := func(b *Batch) error {
		got = append(got, b)
		return nil
	}

	require.NoError(t, Run(io, transform, sync))

	require.Equal(t, batches+1, len(got))
	for i := 0; i < batches; i++ {
		require.Len(t, got[i].Data, perBatch)
		for j, d := range got[i].Data {
			require.Equal(t, byte(2*(i*perBatch+j)), d[0])
		}
	}
	require.True(t, got[batches].Empty())
}

func TestRunPropagatesIOError(t *testing.T) {
	wantErr := errors.New("boom")
	io := func() (*Batch, bool, error) { return nil, false, wantErr }
	transform := func(b *Batch) error { return nil }
	syncCalls := 0
	sync := func(b *Batch) error { syncCalls++; return nil }

	err := Run(io, transform, sync)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	require.Equal(t, 0, syncCalls)
}

func TestRunPropagatesTransformError(t *testing.T) {
	sent := false
	io := func() (*Batch, bool, error) {
		if sent {
			return &Batch{}, false, nil
		}
		sent = true
		return makeBatch(2, 0), true, nil
	}
	wantErr := errors.New("transform boom")
	transform := func(b *Batch) error { return wantErr }
	sync := func(b *Batch) error { return nil }

	err := Run(io, transform, sync)
	require.Error(t, err)
	require.Contains(t, err.Error(), "transform boom")
}

func TestRunPropagatesSyncError(t *testing.T) {
	sent := false
	io := func() (*Batch, bool, error) {
		if sent {
			return &Batch{}, false, nil
		}
		sent = true
		return makeBatch(1, 0), true, nil
	}
	transform := func(b *Batch) error { return nil }
	wantErr := errors.New("sync boom")
	sync := func(b *Batch) error {
		if b.Empty() {
			return nil
		}
		return wantErr
	}

	err := Run(io, transform, sync)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sync boom")
}
