// Package scmatrix represents cell x feature matrices (gene expression, peak
// accessibility, gene activity, motif deviations) loaded from upstream
// artifacts. Features are rows, cell barcodes are columns.
package scmatrix

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/carbocation/runningvariance"
	"gonum.org/v1/gonum/mat"
)

type Matrix struct {
	Features []string
	Barcodes []string

	featIdx map[string]int
	bcIdx   map[string]int

	data *mat.Dense
}

// New builds a Matrix over row-major data of len(features)*len(barcodes)
// values. The data slice is retained, not copied.
func New(features, barcodes []string, data []float64) (*Matrix, error) {
	if got, want := len(data), len(features)*len(barcodes); got != want {
		return nil, pfx.Err(fmt.Errorf("scmatrix: %d values for %d features x %d barcodes (want %d)", got, len(features), len(barcodes), want))
	}

	m := &Matrix{
		Features: features,
		Barcodes: barcodes,
		data:     mat.NewDense(len(features), len(barcodes), data),
	}
	m.reindex()

	return m, nil
}

func (m *Matrix) reindex() {
	dupes := 0

	m.featIdx = make(map[string]int, len(m.Features))
	for i, f := range m.Features {
		// First-wins on duplicated feature names
		if _, exists := m.featIdx[f]; exists {
			dupes++
			continue
		}
		m.featIdx[f] = i
	}

	if dupes > 0 {
		log.Println("scmatrix:", dupes, "duplicated feature names; keeping the first occurrence of each")
	}

	m.bcIdx = make(map[string]int, len(m.Barcodes))
	for i, b := range m.Barcodes {
		m.bcIdx[b] = i
	}
}

func (m *Matrix) Dims() (features, cells int) {
	return m.data.Dims()
}

func (m *Matrix) At(feature, cell int) float64 {
	return m.data.At(feature, cell)
}

func (m *Matrix) Set(feature, cell int, v float64) {
	m.data.Set(feature, cell, v)
}

// Row returns the values for a named feature across all cells. The returned
// slice aliases the matrix storage.
func (m *Matrix) Row(feature string) ([]float64, error) {
	i, exists := m.featIdx[feature]
	if !exists {
		return nil, pfx.Err(fmt.Errorf("scmatrix: feature %q not present", feature))
	}

	return m.data.RawRowView(i), nil
}

func (m *Matrix) HasFeature(feature string) bool {
	_, exists := m.featIdx[feature]
	return exists
}

func (m *Matrix) BarcodeIndex(barcode string) (int, bool) {
	i, exists := m.bcIdx[barcode]
	return i, exists
}

// ColSums returns per-cell totals, e.g. library size for count matrices.
func (m *Matrix) ColSums() []float64 {
	nFeat, nCells := m.data.Dims()

	sums := make([]float64, nCells)
	for i := 0; i < nFeat; i++ {
		row := m.data.RawRowView(i)
		for j := 0; j < nCells; j++ {
			sums[j] += row[j]
		}
	}

	return sums
}

// CPMLog1p normalizes each cell to a fixed total of 10,000 counts and applies
// log1p, in place. Cells with zero counts are left at zero.
func (m *Matrix) CPMLog1p() {
	nFeat, nCells := m.data.Dims()
	sums := m.ColSums()

	for i := 0; i < nFeat; i++ {
		row := m.data.RawRowView(i)
		for j := 0; j < nCells; j++ {
			if sums[j] == 0 {
				continue
			}
			row[j] = math.Log1p(row[j] / sums[j] * 1e4)
		}
	}
}

// SubsetCols returns a new Matrix restricted to the named barcodes, in the
// given order. Unknown barcodes are an error.
func (m *Matrix) SubsetCols(barcodes []string) (*Matrix, error) {
	nFeat, _ := m.data.Dims()

	cols := make([]int, len(barcodes))
	for i, b := range barcodes {
		j, exists := m.bcIdx[b]
		if !exists {
			return nil, pfx.Err(fmt.Errorf("scmatrix: barcode %q not present", b))
		}
		cols[i] = j
	}

	data := make([]float64, nFeat*len(barcodes))
	for i := 0; i < nFeat; i++ {
		row := m.data.RawRowView(i)
		for newJ, oldJ := range cols {
			data[i*len(barcodes)+newJ] = row[oldJ]
		}
	}

	return New(m.Features, append([]string{}, barcodes...), data)
}

// SubsetRows returns a new Matrix restricted to the named features, in the
// given order.
func (m *Matrix) SubsetRows(features []string) (*Matrix, error) {
	_, nCells := m.data.Dims()

	data := make([]float64, 0, len(features)*nCells)
	for _, f := range features {
		i, exists := m.featIdx[f]
		if !exists {
			return nil, pfx.Err(fmt.Errorf("scmatrix: feature %q not present", f))
		}
		data = append(data, m.data.RawRowView(i)...)
	}

	return New(append([]string{}, features...), m.Barcodes, data)
}

// VariableFeatures ranks features by variance (streaming, via running
// variance so a single pass suffices) and returns the top n names.
func (m *Matrix) VariableFeatures(n int) []string {
	nFeat, nCells := m.data.Dims()

	type fv struct {
		name     string
		variance float64
	}

	ranked := make([]fv, 0, nFeat)
	for i := 0; i < nFeat; i++ {
		rv := runningvariance.NewRunningStat()
		row := m.data.RawRowView(i)
		for j := 0; j < nCells; j++ {
			rv.Push(row[j])
		}
		ranked = append(ranked, fv{name: m.Features[i], variance: rv.Variance()})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].variance > ranked[j].variance })

	if n > len(ranked) {
		n = len(ranked)
	}

	out := make([]string, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, r.name)
	}

	return out
}
