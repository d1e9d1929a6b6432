// Package correlate provides the correlation testing shared by TF selection
// and peak-to-gene linkage: Pearson r with a Student's-t p-value, and
// Benjamini-Hochberg correction across a batch of tests.
package correlate

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PearsonWithP returns Pearson's r between x and y and the two-sided p-value
// from the t transform with n-2 degrees of freedom. Degenerate input (fewer
// than 3 points, or zero variance in either vector) reports r=0, p=1 rather
// than an error, since screening loops treat those as uninformative.
func PearsonWithP(x, y []float64) (r, p float64, err error) {
	if len(x) != len(y) {
		return 0, 1, pfx.Err(fmt.Errorf("correlate: length mismatch %d vs %d", len(x), len(y)))
	}

	n := len(x)
	if n < 3 {
		return 0, 1, nil
	}

	r = stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		// Zero variance on one side
		return 0, 1, nil
	}

	// Clamp against floating error before the t transform
	if r >= 1 {
		return 1, 0, nil
	}
	if r <= -1 {
		return -1, 0, nil
	}

	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.CDF(-math.Abs(t))
	if p > 1 {
		p = 1
	}

	return r, p, nil
}

// BenjaminiHochberg converts p-values to FDR q-values. Output is aligned
// with the input ordering.
func BenjaminiHochberg(ps []float64) []float64 {
	n := len(ps)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ps[order[a]] < ps[order[b]] })

	qs := make([]float64, n)
	running := 1.0
	for rank := n - 1; rank >= 0; rank-- {
		idx := order[rank]
		q := ps[idx] * float64(n) / float64(rank+1)
		if q < running {
			running = q
		}
		qs[idx] = running
	}

	return qs
}
