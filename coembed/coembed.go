// Package coembed works with the shared latent space into which RNA and ATAC
// cells were projected upstream (CCA integration plus batch correction). The
// coordinates are consumed as an artifact; this package answers neighbourhood
// queries over them and transfers cluster labels across modalities.
package coembed

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/cellannot"
)

type Embedding struct {
	Barcodes []string
	Coords   [][]float64

	idx map[string]int
}

// ReadEmbedding parses a barcode + k-dimensional coordinate table. A header
// row is detected by its non-numeric coordinate fields and skipped.
func ReadEmbedding(b []byte) (*Embedding, error) {
	delim := fibronet.DetermineDelimiter(bytes.NewReader(b))

	cr := csv.NewReader(bytes.NewReader(b))
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	e := &Embedding{idx: make(map[string]int)}
	dims := 0

	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		if len(rec) < 2 {
			return nil, pfx.Err(fmt.Errorf("coembed: row %d has %d fields; need barcode plus coordinates", row, len(rec)))
		}

		coords := make([]float64, 0, len(rec)-1)
		numeric := true
		for _, f := range rec[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				numeric = false
				break
			}
			coords = append(coords, v)
		}

		if !numeric {
			if row == 0 {
				// Header row
				continue
			}
			return nil, pfx.Err(fmt.Errorf("coembed: non-numeric coordinate on row %d (%v)", row, rec))
		}

		if dims == 0 {
			dims = len(coords)
		} else if len(coords) != dims {
			return nil, pfx.Err(fmt.Errorf("coembed: row %d has %d dims, want %d", row, len(coords), dims))
		}

		e.idx[rec[0]] = len(e.Barcodes)
		e.Barcodes = append(e.Barcodes, rec[0])
		e.Coords = append(e.Coords, coords)
	}

	if len(e.Barcodes) == 0 {
		return nil, pfx.Err(fmt.Errorf("coembed: no embedding rows parsed"))
	}

	return e, nil
}

func (e *Embedding) Dims() int {
	if len(e.Coords) == 0 {
		return 0
	}

	return len(e.Coords[0])
}

// Index returns the row index of a barcode in the embedding.
func (e *Embedding) Index(barcode string) (int, bool) {
	i, exists := e.idx[barcode]
	return i, exists
}

func (e *Embedding) Coord(barcode string) ([]float64, bool) {
	i, exists := e.idx[barcode]
	if !exists {
		return nil, false
	}

	return e.Coords[i], true
}

type Neighbor struct {
	Index    int
	Barcode  string
	Distance float64
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return math.Sqrt(sum)
}

// KNN returns the k nearest cells to query among those accepted by keep
// (keep == nil considers every cell). Exhaustive scan; the tutorial-scale
// embeddings are tens of thousands of cells, which stays well under a second.
func (e *Embedding) KNN(query []float64, k int, keep func(i int) bool) []Neighbor {
	candidates := make([]Neighbor, 0, len(e.Coords))
	for i, c := range e.Coords {
		if keep != nil && !keep(i) {
			continue
		}
		candidates = append(candidates, Neighbor{
			Index:    i,
			Barcode:  e.Barcodes[i],
			Distance: euclidean(query, c),
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })

	if k > len(candidates) {
		k = len(candidates)
	}

	return candidates[:k]
}

// KNNAll runs KNN for many queries with bounded parallelism.
func (e *Embedding) KNNAll(queries [][]float64, k int, keep func(i int) bool, concurrency int) [][]Neighbor {
	if concurrency < 1 {
		concurrency = 1
	}

	out := make([][]Neighbor, len(queries))

	sem := make(chan bool, concurrency)
	var wg sync.WaitGroup
	for qi := range queries {
		sem <- true
		wg.Add(1)
		go func(qi int) {
			defer wg.Done()
			defer func() { <-sem }()

			out[qi] = e.KNN(queries[qi], k, keep)
		}(qi)
	}
	wg.Wait()

	return out
}

// TransferLabels assigns each target barcode the majority cluster among its k
// nearest reference cells. Reference cells are typically the RNA modality
// with curated cluster labels; targets the ATAC barcodes. Targets without
// coordinates in the embedding are skipped.
func (e *Embedding) TransferLabels(ref []cellannot.Cell, targets []string, k int) map[string]string {
	refIdx := make(map[int]string) // embedding index -> cluster
	for _, c := range ref {
		if i, exists := e.idx[c.Barcode]; exists {
			refIdx[i] = c.Cluster
		}
	}

	keep := func(i int) bool {
		_, exists := refIdx[i]
		return exists
	}

	out := make(map[string]string, len(targets))
	for _, barcode := range targets {
		query, exists := e.Coord(barcode)
		if !exists {
			continue
		}

		votes := make(map[string]int)
		for _, nb := range e.KNN(query, k, keep) {
			votes[refIdx[nb.Index]]++
		}

		best, bestN := "", -1
		for cluster, n := range votes {
			if n > bestN || (n == bestN && cluster < best) {
				best, bestN = cluster, n
			}
		}
		if bestN > 0 {
			out[barcode] = best
		}
	}

	return out
}
