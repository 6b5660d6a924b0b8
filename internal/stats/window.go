package stats

import "time"

// Window attaches a ring of fixed-duration time bins to the rate-eligible
// slots of one shard. The current bin accumulates deltas in place; Rotate
// advances the write cursor on a fixed tick. Like the registry, a window is
// written only by its own shard worker and read by the aggregator.
type Window struct {
	numBins int
	binDur  time.Duration

	cursor   int
	binsUsed int

	bins   [NumStats][]uint64
	within [NumStats]uint64
}

// Default window geometry: a ten minute trailing window in ten second bins.
const (
	DefaultNumBins     = 60
	DefaultBinDuration = 10 * time.Second
)

// NewWindow creates a window with numBins bins of binDur each.
func NewWindow(numBins int, binDur time.Duration) *Window {
	if numBins < 1 {
		numBins = DefaultNumBins
	}
	if binDur <= 0 {
		binDur = DefaultBinDuration
	}
	w := &Window{numBins: numBins, binDur: binDur}
	for id := StatID(0); id < NumStats; id++ {
		if statDefs[id].Categories&(CatRate|CatMax|CatMaxMax) != 0 {
			w.bins[id] = make([]uint64, numBins)
		}
	}
	return w
}

// Record adds delta to the current bin of a windowed slot. Recording on a
// slot that is not rate or max eligible is a no-op.
func (w *Window) Record(id StatID, delta uint64) {
	if w.bins[id] == nil {
		return
	}
	w.bins[id][w.cursor] += delta
	w.within[id] += delta
}

// Rotate closes the current bin and opens the next one, evicting whatever
// the ring held there a full window ago. Called once per bin duration, on
// the shard goroutine.
func (w *Window) Rotate() {
	w.cursor = (w.cursor + 1) % w.numBins
	for id := StatID(0); id < NumStats; id++ {
		if w.bins[id] == nil {
			continue
		}
		w.within[id] -= w.bins[id][w.cursor]
		w.bins[id][w.cursor] = 0
	}
	if w.binsUsed < w.numBins {
		w.binsUsed++
	}
}

// WithinWindow returns the sum of deltas over all retained bins, including
// the partially-filled current one.
func (w *Window) WithinWindow(id StatID) uint64 {
	return w.within[id]
}

// BinsUsed reports how many bins have completed a full rotation, up to the
// ring size. Rate math divides by this; zero means "report zero".
func (w *Window) BinsUsed() int {
	return w.binsUsed
}

// BinValue returns the accumulated delta of ring position i for a slot.
func (w *Window) BinValue(id StatID, i int) uint64 {
	if w.bins[id] == nil {
		return 0
	}
	return w.bins[id][i]
}

// BinDuration returns the configured bin length.
func (w *Window) BinDuration() time.Duration {
	return w.binDur
}

// Rate computes this shard's own rate for a slot: window sum over elapsed
// complete bins. Zero before the first rotation.
func (w *Window) Rate(id StatID) float64 {
	if w.binsUsed == 0 {
		return 0
	}
	return float64(w.within[id]) / (float64(w.binsUsed) * w.binDur.Seconds())
}
