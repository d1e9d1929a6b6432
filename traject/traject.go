// Package traject orders a chosen subset of cells along a one-dimensional
// pseudotime. The diffusion-map coordinates come in as an upstream artifact;
// this package owns the ordering, scaling, and orientation.
package traject

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/coembed"
)

// Fit computes pseudotime for the cells of keepClusters: each cell's score is
// its first diffusion component averaged over its smoothK nearest trajectory
// cells (denoising the raw component), and ranks of that score are rescaled
// to [0,1]. Cells without diffusion coordinates are skipped.
func Fit(dcs *coembed.Embedding, cells []cellannot.Cell, keepClusters []string, smoothK int) (map[string]float64, error) {
	if smoothK < 1 {
		smoothK = 10
	}

	keep := make(map[string]bool, len(keepClusters))
	for _, cl := range keepClusters {
		keep[cl] = true
	}

	onTrack := make(map[int]bool) // embedding index -> on trajectory
	barcodes := make([]string, 0)
	indices := make([]int, 0)
	for _, c := range cells {
		if len(keep) > 0 && !keep[c.Cluster] {
			continue
		}
		i, exists := dcs.Index(c.Barcode)
		if !exists {
			continue
		}
		onTrack[i] = true
		barcodes = append(barcodes, c.Barcode)
		indices = append(indices, i)
	}

	if len(barcodes) < 2 {
		return nil, pfx.Err(fmt.Errorf("traject: only %d cells available for trajectory fitting", len(barcodes)))
	}

	keepFn := func(i int) bool { return onTrack[i] }

	// Locally averaged DC1 per trajectory cell.
	scores := make([]float64, len(barcodes))
	for bi, embIdx := range indices {
		nbs := dcs.KNN(dcs.Coords[embIdx], smoothK, keepFn)

		var sum float64
		for _, nb := range nbs {
			sum += dcs.Coords[nb.Index][0]
		}
		scores[bi] = sum / float64(len(nbs))
	}

	order := make([]int, len(barcodes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ai, bi := order[a], order[b]
		if scores[ai] != scores[bi] {
			return scores[ai] < scores[bi]
		}
		// Tied smoothed scores resolve by the raw component, then barcode,
		// so ranks stay deterministic.
		rawA, rawB := dcs.Coords[indices[ai]][0], dcs.Coords[indices[bi]][0]
		if rawA != rawB {
			return rawA < rawB
		}
		return barcodes[ai] < barcodes[bi]
	})

	out := make(map[string]float64, len(barcodes))
	denom := float64(len(barcodes) - 1)
	for rank, bi := range order {
		out[barcodes[bi]] = float64(rank) / denom
	}

	return out, nil
}

// Orient flips pseudotime so the named root cluster sits near zero. A
// trajectory whose root already averages below 0.5 is left alone.
func Orient(pt map[string]float64, cells []cellannot.Cell, rootCluster string) map[string]float64 {
	var sum float64
	var n int
	for _, c := range cells {
		if c.Cluster != rootCluster {
			continue
		}
		if v, exists := pt[c.Barcode]; exists {
			sum += v
			n++
		}
	}

	if n == 0 || sum/float64(n) <= 0.5 {
		return pt
	}

	out := make(map[string]float64, len(pt))
	for barcode, v := range pt {
		out[barcode] = 1 - v
	}

	return out
}

// Apply writes pseudotime onto the matching cells; cells off the trajectory
// are explicitly unset.
func Apply(cells []cellannot.Cell, pt map[string]float64) []cellannot.Cell {
	out := make([]cellannot.Cell, len(cells))
	copy(out, cells)

	for i := range out {
		if v, exists := pt[out[i].Barcode]; exists {
			out[i].Pseudotime = cellannot.MaybeFloat(v)
		} else {
			out[i].Pseudotime = cellannot.MaybeFloat(math.NaN())
		}
	}

	return out
}
