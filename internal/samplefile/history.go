package samplefile

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/refresh-bio/gtshark/internal/pbwt"
)

// maxTrackedDist bounds both the neighbor-agreement counters and the
// history deque length (§3, MAX_TRACKED_DIST).
const maxTrackedDist = 2048

// historyEntry is one variant's worth of PBWT runs, snappy-compressed,
// plus the sample's own per-haplotype values at that variant. Up to
// maxTrackedDist entries are held live during a sample pass, so
// compressing the run list meaningfully cuts the resident footprint
// of what would otherwise be thousands of retained run slices.
type historyEntry struct {
	runs   []byte
	sample [2]uint8
}

func newHistoryEntry(rle []pbwt.Run, sample [2]uint8) historyEntry {
	return historyEntry{runs: snappy.Encode(nil, encodeRunsToBytes(rle)), sample: sample}
}

func (h historyEntry) decodeRuns() []pbwt.Run {
	raw, err := snappy.Decode(nil, h.runs)
	if err != nil {
		panic(err)
	}
	return decodeRunsFromBytes(raw)
}

func encodeRunsToBytes(runs []pbwt.Run) []byte {
	buf := make([]byte, len(runs)*5)
	for i, r := range runs {
		buf[i*5] = r.Symbol
		binary.LittleEndian.PutUint32(buf[i*5+1:i*5+5], r.Length)
	}
	return buf
}

func decodeRunsFromBytes(b []byte) []pbwt.Run {
	n := len(b) / 5
	runs := make([]pbwt.Run, n)
	for i := 0; i < n; i++ {
		runs[i].Symbol = b[i*5]
		runs[i].Length = binary.LittleEndian.Uint32(b[i*5+1 : i*5+5])
	}
	return runs
}

// history is a bounded FIFO of historyEntry, the most recently pushed
// entry at index 0, oldest evicted once the deque grows past
// maxTrackedDist — a ring buffer since no library in the retrieval
// pack offers a bounded FIFO deque and the access pattern (push front,
// indexed walk from the front) doesn't fit container/list cleanly.
type history struct {
	buf  []historyEntry
	head int
	n    int
}

func newHistory() *history {
	return &history{buf: make([]historyEntry, maxTrackedDist)}
}

func (h *history) push(e historyEntry) {
	h.head = (h.head - 1 + maxTrackedDist) % maxTrackedDist
	h.buf[h.head] = e
	if h.n < maxTrackedDist {
		h.n++
	}
}

func (h *history) len() int { return h.n }

// at returns the k-th most recent entry (0 = just pushed).
func (h *history) at(k int) historyEntry {
	return h.buf[(h.head+k)%maxTrackedDist]
}
