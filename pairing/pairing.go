// Package pairing matches ATAC cells to RNA cells by proximity in the
// co-embedding, synthesizing the pseudo-multimodal cells the downstream
// correlation stages require.
package pairing

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/coembed"
	"github.com/gocarina/gocsv"
)

type Pair struct {
	ATACBarcode string  `csv:"atac_barcode"`
	RNABarcode  string  `csv:"rna_barcode"`
	Distance    float64 `csv:"distance"`
	Cluster     string  `csv:"cluster"`
}

type Options struct {
	// K nearest RNA candidates considered per ATAC cell.
	K int

	// SameCluster restricts candidates to RNA cells sharing the ATAC cell's
	// (transferred) cluster.
	SameCluster bool

	// AllowReuse lets an RNA cell back a second ATAC cell when unique
	// matching leaves ATAC cells stranded.
	AllowReuse bool

	Concurrency int
}

type candidate struct {
	atac     int
	rna      string
	distance float64
}

// PairCells pairs every ATAC cell with an RNA cell. Matching is greedy by
// ascending distance with each RNA cell used at most once; stranded ATAC
// cells then fall back to their nearest candidate when AllowReuse is set, and
// are dropped (with a logged count) otherwise.
func PairCells(emb *coembed.Embedding, rna, atac []cellannot.Cell, opts Options) ([]Pair, error) {
	if opts.K < 1 {
		opts.K = 5
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}

	rnaByIdx := make(map[int]cellannot.Cell) // embedding index -> RNA cell
	for _, c := range rna {
		if i, exists := emb.Index(c.Barcode); exists {
			rnaByIdx[i] = c
		}
	}
	if len(rnaByIdx) == 0 {
		return nil, pfx.Err(fmt.Errorf("pairing: no RNA cells present in the embedding"))
	}

	queries := make([][]float64, 0, len(atac))
	queryCells := make([]cellannot.Cell, 0, len(atac))
	missing := 0
	for _, c := range atac {
		coord, exists := emb.Coord(c.Barcode)
		if !exists {
			missing++
			continue
		}
		queries = append(queries, coord)
		queryCells = append(queryCells, c)
	}
	if missing > 0 {
		log.Println("pairing:", missing, "ATAC cells missing from the embedding")
	}

	// Candidate lists per ATAC cell. The keep mask varies per query when
	// cluster-constrained, so the parallel path is only used otherwise.
	neighborSets := make([][]coembed.Neighbor, len(queries))
	if opts.SameCluster {
		for qi := range queries {
			cluster := queryCells[qi].Cluster
			keep := func(i int) bool {
				rc, exists := rnaByIdx[i]
				return exists && rc.Cluster == cluster
			}
			neighborSets[qi] = emb.KNN(queries[qi], opts.K, keep)
		}
	} else {
		keep := func(i int) bool {
			_, exists := rnaByIdx[i]
			return exists
		}
		neighborSets = emb.KNNAll(queries, opts.K, keep, opts.Concurrency)
	}

	candidates := make([]candidate, 0)
	for qi, nbs := range neighborSets {
		for _, nb := range nbs {
			candidates = append(candidates, candidate{atac: qi, rna: nb.Barcode, distance: nb.Distance})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })

	matched := make(map[int]Pair)
	usedRNA := make(map[string]bool)
	for _, cand := range candidates {
		if _, done := matched[cand.atac]; done {
			continue
		}
		if usedRNA[cand.rna] {
			continue
		}

		matched[cand.atac] = Pair{
			ATACBarcode: queryCells[cand.atac].Barcode,
			RNABarcode:  cand.rna,
			Distance:    cand.distance,
			Cluster:     queryCells[cand.atac].Cluster,
		}
		usedRNA[cand.rna] = true
	}

	stranded := 0
	for qi := range queries {
		if _, done := matched[qi]; done {
			continue
		}

		if !opts.AllowReuse {
			stranded++
			continue
		}

		if nbs := neighborSets[qi]; len(nbs) > 0 {
			matched[qi] = Pair{
				ATACBarcode: queryCells[qi].Barcode,
				RNABarcode:  nbs[0].Barcode,
				Distance:    nbs[0].Distance,
				Cluster:     queryCells[qi].Cluster,
			}
		} else {
			stranded++
		}
	}
	if stranded > 0 {
		log.Println("pairing:", stranded, "ATAC cells had no available RNA partner and were dropped")
	}

	out := make([]Pair, 0, len(matched))
	for qi := range queries {
		if p, done := matched[qi]; done {
			out = append(out, p)
		}
	}

	return out, nil
}

// WritePairs emits the pair table tab-delimited.
func WritePairs(w io.Writer, pairs []Pair) error {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		cw := csv.NewWriter(out)
		cw.Comma = '\t'
		return gocsv.NewSafeCSVWriter(cw)
	})

	return pfx.Err(gocsv.Marshal(pairs, w))
}

// ReadPairs parses a pair table written by WritePairs.
func ReadPairs(fileBytes []byte) ([]Pair, error) {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = '\t'
		return r
	})

	records := []*Pair{}
	if err := gocsv.UnmarshalBytes(fileBytes, &records); err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]Pair, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}

	return out, nil
}
