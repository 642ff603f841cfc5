package samplefile

import "github.com/refresh-bio/gtshark/internal/pbwt"

// findPrevValue scans rle left to right accumulating positions; for
// each run matching v it records the latest position strictly before
// maxPos. Mirrors §4.6.2's find_prev_value.
func findPrevValue(rle []pbwt.Run, maxPos uint32, v uint8) (pos uint32, found bool) {
	if maxPos == 0 {
		return 0, false
	}
	var cur uint32
	for _, r := range rle {
		if r.Symbol == v {
			if cur+r.Length < maxPos {
				pos = cur + r.Length - 1
			} else {
				pos = maxPos - 1
			}
			found = true
		}
		cur += r.Length
		if cur >= maxPos {
			break
		}
	}
	return pos, found
}

// findNextValue is find_prev_value's mirror: the first position at or
// after minPos whose symbol is v.
func findNextValue(rle []pbwt.Run, minPos uint32, v uint8) (pos uint32, found bool) {
	var cur uint32
	for _, r := range rle {
		end := cur + r.Length
		if r.Symbol == v && end > minPos {
			if cur >= minPos {
				return cur, true
			}
			return minPos, true
		}
		cur = end
	}
	return 0, false
}

// locateFunc is the shared shape of findPrevValue/findNextValue, so
// updateNeighborCounter can drive either direction identically.
type locateFunc func(rle []pbwt.Run, pos uint32, v uint8) (uint32, bool)

// updateNeighborCounter applies §4.6.2's rule for one direction (pred
// or succ) after coding haplotype value v: if the bracketing run
// already carried v, bump the counter; otherwise relocate the nearest
// matching position in rle and walk the history deque backwards via
// pbwt.Engine.RevertDecode, counting consecutive agreements.
func updateNeighborCounter(
	counter uint32,
	leadRun pbwt.Run,
	v uint8,
	rle []pbwt.Run,
	samplePos uint32,
	hist *history,
	engine *pbwt.Engine,
	sampleAt func(historyEntry) uint8,
	locate locateFunc,
) uint32 {
	if leadRun.Symbol == v {
		if counter < maxTrackedDist {
			return counter + 1
		}
		return counter
	}

	pos, found := locate(rle, samplePos, v)
	if !found {
		return 0
	}

	counter = 1
	cur := pos
	for k := 0; k < hist.len(); k++ {
		e := hist.at(k)
		newPos, ok := engine.RevertDecode(cur, e.decodeRuns(), sampleAt(e))
		if !ok {
			break
		}
		counter++
		if counter >= maxTrackedDist {
			return maxTrackedDist
		}
		cur = newPos
	}
	return counter
}
