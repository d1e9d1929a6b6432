// Package smoother reduces noisy per-cell signals to smooth curves along
// pseudotime, by trimmed means over pseudotime bins or moving windows. The
// downstream correlation stages operate on these curves, never on raw
// single-cell values.
package smoother

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/pfx"
)

type Smoothed struct {
	// Centers are the pseudotime bin midpoints.
	Centers []float64

	// Values are the per-bin trimmed means.
	Values []float64
}

// ArgMax returns the bin index holding the curve's maximum.
func (s Smoothed) ArgMax() int {
	best, bestV := 0, math.Inf(-1)
	for i, v := range s.Values {
		if v > bestV {
			best, bestV = i, v
		}
	}

	return best
}

// Bins partitions pseudotime into nBins equal intervals over [0,1] and
// returns the per-bin trimmed mean of values, discarding the discardN highest
// and discardN lowest cells per bin. Empty bins are linearly interpolated
// from the nearest filled neighbours so every curve has the same support.
func Bins(pt, values []float64, nBins, discardN int) (Smoothed, error) {
	if len(pt) != len(values) {
		return Smoothed{}, pfx.Err(fmt.Errorf("smoother: %d pseudotime values vs %d data values", len(pt), len(values)))
	}
	if nBins < 2 {
		return Smoothed{}, pfx.Err(fmt.Errorf("smoother: need at least 2 bins, got %d", nBins))
	}

	binned := make([][]float64, nBins)
	for i, t := range pt {
		if math.IsNaN(t) {
			continue
		}

		b := int(t * float64(nBins))
		if b >= nBins {
			b = nBins - 1
		}
		if b < 0 {
			b = 0
		}
		binned[b] = append(binned[b], values[i])
	}

	out := Smoothed{
		Centers: make([]float64, nBins),
		Values:  make([]float64, nBins),
	}

	filled := make([]bool, nBins)
	anyFilled := false
	for b := range binned {
		out.Centers[b] = (float64(b) + 0.5) / float64(nBins)
		if len(binned[b]) == 0 {
			continue
		}
		out.Values[b] = trimmedMean(binned[b], discardN)
		filled[b] = true
		anyFilled = true
	}

	if !anyFilled {
		return Smoothed{}, pfx.Err(fmt.Errorf("smoother: no cells carried pseudotime"))
	}

	interpolate(out.Values, filled)

	return out, nil
}

// Windowed returns a per-cell smoothed copy of values: cells are ordered by
// pseudotime and each is replaced by the trimmed mean of the window spanning
// adjacentN cells to each side. Output is aligned with the input slices.
func Windowed(pt, values []float64, adjacentN, discardN int) ([]float64, error) {
	if len(pt) != len(values) {
		return nil, pfx.Err(fmt.Errorf("smoother: %d pseudotime values vs %d data values", len(pt), len(values)))
	}

	order := make([]int, 0, len(pt))
	for i, t := range pt {
		if math.IsNaN(t) {
			continue
		}
		order = append(order, i)
	}
	sort.Slice(order, func(a, b int) bool { return pt[order[a]] < pt[order[b]] })

	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}

	for rank, idx := range order {
		lo := rank - adjacentN
		if lo < 0 {
			lo = 0
		}
		hi := rank + adjacentN
		if hi > len(order)-1 {
			hi = len(order) - 1
		}

		window := make([]float64, 0, hi-lo+1)
		for _, j := range order[lo : hi+1] {
			window = append(window, values[j])
		}

		out[idx] = trimmedMean(window, discardN)
	}

	return out, nil
}

// trimmedMean drops the discardN smallest and discardN largest values, then
// averages the rest. Windows too small to trim are averaged whole.
func trimmedMean(vals []float64, discardN int) float64 {
	sorted := append([]float64{}, vals...)
	sort.Float64s(sorted)

	if discardN > 0 && len(sorted) > 2*discardN {
		sorted = sorted[discardN : len(sorted)-discardN]
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return sum / float64(len(sorted))
}

// interpolate fills false-marked positions linearly between their nearest
// true neighbours, extending flat at the ends.
func interpolate(vals []float64, filled []bool) {
	lastFilled := -1
	for i := 0; i < len(vals); i++ {
		if !filled[i] {
			continue
		}

		if lastFilled == -1 {
			// Leading gap: extend flat
			for j := 0; j < i; j++ {
				vals[j] = vals[i]
			}
		} else if gap := i - lastFilled; gap > 1 {
			step := (vals[i] - vals[lastFilled]) / float64(gap)
			for j := lastFilled + 1; j < i; j++ {
				vals[j] = vals[lastFilled] + step*float64(j-lastFilled)
			}
		}

		lastFilled = i
	}

	// Trailing gap: extend flat
	if lastFilled >= 0 {
		for j := lastFilled + 1; j < len(vals); j++ {
			vals[j] = vals[lastFilled]
		}
	}
}
