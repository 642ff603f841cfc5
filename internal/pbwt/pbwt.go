// Package pbwt implements the Positional Burrows-Wheeler Transform over
// the 4-symbol genotype alphabet, including the "neglect limit"
// stability rule and the single-item tracking/estimation operations the
// sample codec builds its predictive context on.
package pbwt

// Sigma is the alphabet size: 4 genotype codes per haplotype position.
const Sigma = 4

// Run is a maximal constant-symbol interval of a haplotype column.
type Run struct {
	Symbol uint8
	Length uint32
}

// Engine holds one column's worth of permutation state and replays it
// variant by variant. The zero value is not usable; call StartForward
// or StartReverse first.
type Engine struct {
	noItems      uint32
	neglectLimit uint32
	permPrev     []uint32
	permCur      []uint32
}

// New returns an unstarted Engine.
func New() *Engine {
	return &Engine{}
}

func identity(n uint32) []uint32 {
	p := make([]uint32, n)
	for i := range p {
		p[i] = uint32(i)
	}
	return p
}

// StartForward (re)initializes the engine for encoding noItems-wide
// columns with the given neglect limit, starting from the identity
// permutation.
func (e *Engine) StartForward(noItems, neglectLimit uint32) {
	e.noItems = noItems
	e.neglectLimit = neglectLimit
	e.permPrev = identity(noItems)
	e.permCur = make([]uint32, noItems)
}

// StartReverse (re)initializes the engine for decoding; the reverse
// transform needs the same identity starting permutation as the
// forward one.
func (e *Engine) StartReverse(noItems, neglectLimit uint32) {
	e.StartForward(noItems, neglectLimit)
}

// NoItems returns the configured column width (N*ploidy).
func (e *Engine) NoItems() uint32 {
	return e.noItems
}

func histogramOfColumn(column []uint8) (hist [Sigma]uint32) {
	for _, s := range column {
		hist[s]++
	}
	return
}

func histogramOfRuns(runs []Run) (hist [Sigma]uint32) {
	for _, r := range runs {
		hist[r.Symbol] += r.Length
	}
	return
}

// cumulativeSums converts raw per-symbol counts into an exclusive
// prefix sum (cum[s] = number of items with symbol < s) and reports the
// largest raw count, used by the neglect-limit commit rule.
func cumulativeSums(hist [Sigma]uint32) (cum [Sigma]uint32, maxCount uint32) {
	for _, c := range hist {
		if c > maxCount {
			maxCount = c
		}
	}
	var running uint32
	for s := 0; s < Sigma; s++ {
		cum[s] = running
		running += hist[s]
	}
	return
}

func (e *Engine) commit(maxCount uint32) bool {
	return e.noItems-maxCount >= e.neglectLimit
}

// Encode runs the forward PBWT over column (length NoItems), returning
// its run-length encoding in perm-prev order, and conditionally commits
// the newly computed permutation per the neglect-limit rule.
func (e *Engine) Encode(column []uint8) []Run {
	cum, maxCount := cumulativeSums(histogramOfColumn(column))

	var runs []Run
	prevSymbol := column[e.permPrev[0]]
	var runLen uint32

	for i := uint32(0); i < e.noItems; i++ {
		curSymbol := column[e.permPrev[i]]
		if curSymbol == prevSymbol {
			runLen++
		} else {
			runs = append(runs, Run{prevSymbol, runLen})
			prevSymbol = curSymbol
			runLen = 1
		}

		e.permCur[cum[curSymbol]] = e.permPrev[i]
		cum[curSymbol]++
	}
	runs = append(runs, Run{prevSymbol, runLen})

	if e.commit(maxCount) {
		e.permPrev, e.permCur = e.permCur, e.permPrev
	}
	return runs
}

// Decode expands runs (as produced by Encode, with the wire convention
// that the last run's stored length may be 0 meaning "to the end"
// already resolved by the caller) into a column in natural sample
// order, advancing the permutation exactly as Encode would have.
func (e *Engine) Decode(runs []Run) []uint8 {
	cum, maxCount := cumulativeSums(histogramOfRuns(runs))

	output := make([]uint8, e.noItems)
	ri := 0
	curSymbol := runs[0].Symbol
	curCnt := runs[0].Length

	for i := uint32(0); i < e.noItems; i++ {
		output[e.permPrev[i]] = curSymbol

		e.permCur[cum[curSymbol]] = e.permPrev[i]
		cum[curSymbol]++

		curCnt--
		if curCnt == 0 && i+1 < e.noItems {
			ri++
			curSymbol = runs[ri].Symbol
			curCnt = runs[ri].Length
		}
	}

	if e.commit(maxCount) {
		e.permPrev, e.permCur = e.permCur, e.permPrev
	}
	return output
}

// Advance updates the permutation from runs exactly as Decode would,
// without materializing the output column — for callers that only
// need the RLE runs themselves (the compressed-DB codec's "raw" query
// used by the sample codec, which works from runs directly).
func (e *Engine) Advance(runs []Run) {
	cum, maxCount := cumulativeSums(histogramOfRuns(runs))

	ri := 0
	curSymbol := runs[0].Symbol
	curCnt := runs[0].Length

	for i := uint32(0); i < e.noItems; i++ {
		e.permCur[cum[curSymbol]] = e.permPrev[i]
		cum[curSymbol]++

		curCnt--
		if curCnt == 0 && i+1 < e.noItems {
			ri++
			curSymbol = runs[ri].Symbol
			curCnt = runs[ri].Length
		}
	}

	if e.commit(maxCount) {
		e.permPrev, e.permCur = e.permCur, e.permPrev
	}
}

// TrackItem computes the symbol a virtual position itemPrevPos (given
// in perm-prev order) maps to in runs, and the corresponding position
// in perm-cur order, agreeing with the same commit rule Encode/Decode
// use. When the permutation is not committed for this variant,
// newPos == itemPrevPos.
func (e *Engine) TrackItem(runs []Run, itemPrevPos uint32) (value uint8, newPos uint32) {
	histComplete := histogramOfRuns(runs)
	cum, maxCount := cumulativeSums(histComplete)

	var histPartial [Sigma]uint32
	var curPos uint32
	for _, r := range runs {
		if itemPrevPos < curPos+r.Length {
			value = r.Symbol
			histPartial[r.Symbol] += itemPrevPos - curPos
			break
		}
		histPartial[r.Symbol] += r.Length
		curPos += r.Length
	}

	if e.commit(maxCount) {
		newPos = cum[value] + histPartial[value]
	} else {
		newPos = itemPrevPos
	}
	return value, newPos
}

// TrackItems is the two-position variant of TrackItem, sharing the
// histogram computation across both queries (ploidy-2 haplotype pair).
func (e *Engine) TrackItems(runs []Run, itemPrevPos [2]uint32) (values [2]uint8, newPos [2]uint32) {
	histComplete := histogramOfRuns(runs)
	cum, maxCount := cumulativeSums(histComplete)
	commit := e.commit(maxCount)

	for i := 0; i < 2; i++ {
		var histPartial [Sigma]uint32
		var curPos uint32
		for _, r := range runs {
			if itemPrevPos[i] < curPos+r.Length {
				values[i] = r.Symbol
				histPartial[r.Symbol] += itemPrevPos[i] - curPos
				break
			}
			histPartial[r.Symbol] += r.Length
			curPos += r.Length
		}
		if commit {
			newPos[i] = cum[values[i]] + histPartial[values[i]]
		} else {
			newPos[i] = itemPrevPos[i]
		}
	}
	return values, newPos
}

// EstimateValue computes the position itemPrevPos would map to under
// the assumption its symbol is value, without requiring the true
// symbol at itemPrevPos to already be known. It also returns the two
// runs bracketing itemPrevPos: runs[0] is the (possibly truncated) run
// to the left, runs[1] the remainder or the following run.
func (e *Engine) EstimateValue(runs []Run, itemPrevPos uint32, value uint8) (bracket [2]Run, newPos uint32) {
	histComplete := histogramOfRuns(runs)
	cum, maxCount := cumulativeSums(histComplete)

	var counterForValue uint32

	if itemPrevPos == 0 {
		bracket[0] = Run{0, 0}
		if len(runs) > 0 {
			bracket[1] = runs[0]
		}
	} else {
		var curPos uint32
		for i, r := range runs {
			if itemPrevPos == curPos+r.Length {
				bracket[0] = r
				if i+1 < len(runs) {
					bracket[1] = runs[i+1]
				}
				if value == r.Symbol {
					counterForValue += r.Length
				}
				break
			} else if itemPrevPos < curPos+r.Length {
				left := itemPrevPos - curPos
				bracket[0] = Run{r.Symbol, left}
				bracket[1] = Run{r.Symbol, r.Length - left}
				if value == r.Symbol {
					counterForValue += left
				}
				break
			}
			curPos += r.Length
			if value == r.Symbol {
				counterForValue += r.Length
			}
		}
	}

	if e.commit(maxCount) {
		newPos = cum[value] + counterForValue
	} else {
		newPos = itemPrevPos
	}
	return bracket, newPos
}

// RevertDecode inverts the scatter mapping: given a position posCur in
// perm-cur order and the symbol that must be found there
// (referenceValue), it returns the corresponding position in perm-prev
// order. ok is false when the actual symbol at posCur disagrees with
// referenceValue — the caller's signal to stop walking further back in
// history — and also when posCur lies past the end of the column.
func (e *Engine) RevertDecode(posCur uint32, runs []Run, referenceValue uint8) (posPrev uint32, ok bool) {
	cum, _ := cumulativeSums(histogramOfRuns(runs))

	value := uint8(Sigma - 1)
	for i := 1; i < Sigma; i++ {
		if posCur < cum[i] {
			value = uint8(i - 1)
			break
		}
	}
	if value != referenceValue {
		return 0, false
	}

	k := posCur - cum[value]
	var curPos uint32
	for _, r := range runs {
		if r.Symbol != value {
			curPos += r.Length
		} else if k >= r.Length {
			curPos += r.Length
			k -= r.Length
		} else {
			return curPos + k, true
		}
	}
	return 0, false
}
