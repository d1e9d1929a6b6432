// Package grn assembles the directed TF -> target-gene network from the
// three evidence streams: shortlisted TFs, peak-to-gene links, and motif
// presence in the linked peaks.
package grn

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/correlate"
	"github.com/cardiogenomics/fibronet/peakset"
	"github.com/cardiogenomics/fibronet/scmatrix"
	"github.com/cardiogenomics/fibronet/smoother"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
	"github.com/theodesp/unionfind"
)

type Edge struct {
	TF         string  `csv:"tf"`
	Gene       string  `csv:"gene"`
	Importance float64 `csv:"importance"`
	ExprR      float64 `csv:"tf_gene_expr_r"`
	BestLinkR  float64 `csv:"best_link_r"`
	Peak       string  `csv:"peak"`
	Module     int     `csv:"module"`
}

type Options struct {
	// MinExprR is the minimum smoothed TF-expression vs target-expression
	// correlation for an edge to survive.
	MinExprR float64

	NBins    int
	DiscardN int
}

func (o *Options) setDefaults() {
	if o.NBins == 0 {
		o.NBins = 50
	}
}

// Assemble emits one edge per (TF, target) where the TF passed selection,
// the target has a linked peak, that peak carries the TF's motif, and the
// TFs' and target's smoothed expression correlate past MinExprR. Importance
// is the expression correlation scaled by the strongest supporting link.
func Assemble(tfs []correlate.TFGeneCor, links []correlate.PeakGeneCor, hits, rna *scmatrix.Matrix, cells []cellannot.Cell, opts Options) ([]Edge, error) {
	opts.setDefaults()

	pt := make([]float64, 0)
	rnaCols := make([]int, 0)
	for _, c := range cells {
		if !c.Pseudotime.IsSet() {
			continue
		}
		if j, exists := rna.BarcodeIndex(c.Barcode); exists {
			pt = append(pt, float64(c.Pseudotime))
			rnaCols = append(rnaCols, j)
		}
	}
	if len(pt) == 0 {
		return nil, pfx.Err(fmt.Errorf("grn: no RNA cells carry pseudotime"))
	}

	curve := func(gene string) (smoother.Smoothed, error) {
		row, err := rna.Row(gene)
		if err != nil {
			return smoother.Smoothed{}, err
		}

		vals := make([]float64, len(rnaCols))
		for i, j := range rnaCols {
			vals[i] = row[j]
		}

		return smoother.Bins(pt, vals, opts.NBins, opts.DiscardN)
	}

	// Motif hits keyed on normalized peak names so ATAC exports with
	// different peak-name encodings still match.
	hitCol := make(map[string]int, len(hits.Barcodes))
	for j, name := range hits.Barcodes {
		p, err := peakset.ParsePeak(name)
		if err != nil {
			continue
		}
		hitCol[p.String()] = j
	}

	linksByGene := make(map[string][]correlate.PeakGeneCor)
	for _, l := range links {
		linksByGene[l.Gene] = append(linksByGene[l.Gene], l)
	}

	curveCache := make(map[string]smoother.Smoothed)
	cachedCurve := func(gene string) (smoother.Smoothed, error) {
		if c, exists := curveCache[gene]; exists {
			return c, nil
		}
		c, err := curve(gene)
		if err != nil {
			return smoother.Smoothed{}, err
		}
		curveCache[gene] = c
		return c, nil
	}

	edges := make([]Edge, 0)
	for _, tf := range tfs {
		motifRow, err := hits.Row(tf.TF)
		if err != nil {
			// Shortlisted TF missing from the hit matrix: nothing to bind.
			continue
		}

		if !rna.HasFeature(tf.Gene) {
			continue
		}
		tfCurve, err := cachedCurve(tf.Gene)
		if err != nil {
			return nil, err
		}

		for gene, geneLinks := range linksByGene {
			if gene == tf.Gene {
				continue
			}
			if !rna.HasFeature(gene) {
				continue
			}

			// The supporting link must carry the TF's motif.
			bestLink := 0.0
			bestPeak := ""
			for _, l := range geneLinks {
				j, exists := hitCol[l.Peak]
				if !exists || motifRow[j] == 0 {
					continue
				}
				if l.R > bestLink {
					bestLink = l.R
					bestPeak = l.Peak
				}
			}
			if bestPeak == "" {
				continue
			}

			geneCurve, err := cachedCurve(gene)
			if err != nil {
				return nil, err
			}

			r, _, err := correlate.PearsonWithP(tfCurve.Values, geneCurve.Values)
			if err != nil {
				return nil, err
			}
			if r <= opts.MinExprR {
				continue
			}

			edges = append(edges, Edge{
				TF:         tf.Gene,
				Gene:       gene,
				Importance: r * bestLink,
				ExprR:      r,
				BestLinkR:  bestLink,
				Peak:       bestPeak,
			})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].TF != edges[j].TF {
			return edges[i].TF < edges[j].TF
		}
		return edges[i].Gene < edges[j].Gene
	})

	assignModules(edges)

	return edges, nil
}

// assignModules labels each edge with the connected component of the
// undirected graph its endpoints form.
func assignModules(edges []Edge) {
	nodeID := make(map[string]int)
	id := func(name string) int {
		if v, exists := nodeID[name]; exists {
			return v
		}
		v := len(nodeID)
		nodeID[name] = v
		return v
	}

	for _, e := range edges {
		id(e.TF)
		id(e.Gene)
	}
	if len(nodeID) == 0 {
		return
	}

	uf := unionfind.NewThreadSafeUnionFind(len(nodeID))
	for _, e := range edges {
		uf.Union(nodeID[e.TF], nodeID[e.Gene])
	}

	// Compact the component roots into sequential module numbers.
	moduleOf := make(map[int]int)
	for i := range edges {
		root := uf.Root(nodeID[edges[i].TF])
		m, exists := moduleOf[root]
		if !exists {
			m = len(moduleOf)
			moduleOf[root] = m
		}
		edges[i].Module = m
	}
}

// DegreeSummary reports out-degree statistics across the network's TFs.
type DegreeSummary struct {
	TFs        int
	Targets    int
	Edges      int
	MeanOut    float64
	MedianOut  float64
	MaxOutTF   string
	MaxOutSize int
}

func Summarize(edges []Edge) (DegreeSummary, error) {
	out := DegreeSummary{Edges: len(edges)}

	outDeg := make(map[string]int)
	targets := make(map[string]bool)
	for _, e := range edges {
		outDeg[e.TF]++
		targets[e.Gene] = true
	}

	out.TFs = len(outDeg)
	out.Targets = len(targets)

	if len(outDeg) == 0 {
		return out, nil
	}

	degrees := make([]float64, 0, len(outDeg))
	for tf, d := range outDeg {
		degrees = append(degrees, float64(d))
		if d > out.MaxOutSize {
			out.MaxOutSize = d
			out.MaxOutTF = tf
		}
	}

	var err error
	if out.MeanOut, err = stats.Mean(degrees); err != nil {
		return out, pfx.Err(err)
	}
	if out.MedianOut, err = stats.Median(degrees); err != nil {
		return out, pfx.Err(err)
	}

	return out, nil
}

// WriteEdges emits the edge table tab-delimited.
func WriteEdges(w io.Writer, edges []Edge) error {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		cw := csv.NewWriter(out)
		cw.Comma = '\t'
		return gocsv.NewSafeCSVWriter(cw)
	})

	return pfx.Err(gocsv.Marshal(edges, w))
}

// ReadEdges parses an edge table written by WriteEdges.
func ReadEdges(fileBytes []byte) ([]Edge, error) {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = '\t'
		return r
	})

	records := []*Edge{}
	if err := gocsv.UnmarshalBytes(fileBytes, &records); err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]Edge, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}

	return out, nil
}
