// Package tfactivity shortlists transcription factors whose motif
// accessibility tracks their own expression along the trajectory. The
// per-cell deviation z-scores arrive as an upstream artifact (TF x ATAC-cell
// matrix); this package owns the smoothing, correlation, and the motif
// enrichment test.
package tfactivity

import (
	"encoding/csv"
	"io"
	"log"
	"math"
	"sort"
	"strings"

	fet "github.com/glycerine/golang-fisher-exact"
	"github.com/gocarina/gocsv"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/correlate"
	"github.com/cardiogenomics/fibronet/pairing"
	"github.com/cardiogenomics/fibronet/peakset"
	"github.com/cardiogenomics/fibronet/scmatrix"
	"github.com/cardiogenomics/fibronet/smoother"
)

type Options struct {
	NBins    int
	DiscardN int
	MinR     float64
	MaxFDR   float64
}

func (o *Options) setDefaults() {
	if o.NBins == 0 {
		o.NBins = 50
	}
	if o.MaxFDR == 0 {
		o.MaxFDR = 1e-4
	}
}

// MotifGene extracts the gene symbol from a JASPAR-style motif name such as
// MA0511.2_RUNX1. Dimer motifs (GATA4::NKX2-5) keep their full composite
// name, which will not match a single gene and so drops out downstream.
func MotifGene(motif string) string {
	if i := strings.LastIndex(motif, "_"); i >= 0 {
		return motif[i+1:]
	}

	return motif
}

// SelectTFs tests every TF in the deviation matrix whose gene appears in the
// RNA matrix: deviation and expression are smoothed over pseudotime bins
// across the paired cells, then correlated. FDR is corrected across all TFs
// tested. The full table is returned; apply Shortlist for the final cut.
func SelectTFs(dev, rna *scmatrix.Matrix, pairs []pairing.Pair, cells []cellannot.Cell, opts Options) ([]correlate.TFGeneCor, error) {
	opts.setDefaults()

	ptByBarcode := make(map[string]float64)
	for _, c := range cells {
		if c.Pseudotime.IsSet() {
			ptByBarcode[c.Barcode] = float64(c.Pseudotime)
		}
	}

	// Paired cells with pseudotime form the columns of the analysis.
	type pairCol struct {
		atacCol int
		rnaCol  int
		pt      float64
	}

	cols := make([]pairCol, 0, len(pairs))
	for _, p := range pairs {
		pt, ptOK := ptByBarcode[p.RNABarcode]
		if !ptOK {
			if v, atacPT := ptByBarcode[p.ATACBarcode]; atacPT {
				pt = v
			} else {
				continue
			}
		}

		ac, acOK := dev.BarcodeIndex(p.ATACBarcode)
		rc, rcOK := rna.BarcodeIndex(p.RNABarcode)
		if !acOK || !rcOK {
			continue
		}

		cols = append(cols, pairCol{atacCol: ac, rnaCol: rc, pt: pt})
	}

	if len(cols) == 0 {
		return nil, pfx.Err(errNoPairedCells)
	}

	pt := make([]float64, len(cols))
	for i, c := range cols {
		pt[i] = c.pt
	}

	out := make([]correlate.TFGeneCor, 0)
	skipped := 0

	nTFs, _ := dev.Dims()
	for ti := 0; ti < nTFs; ti++ {
		motif := dev.Features[ti]
		gene := MotifGene(motif)

		if !rna.HasFeature(gene) {
			skipped++
			continue
		}

		devRow, err := dev.Row(motif)
		if err != nil {
			return nil, err
		}
		rnaRow, err := rna.Row(gene)
		if err != nil {
			return nil, err
		}

		devVals := make([]float64, len(cols))
		rnaVals := make([]float64, len(cols))
		for i, c := range cols {
			devVals[i] = devRow[c.atacCol]
			rnaVals[i] = rnaRow[c.rnaCol]
		}

		devCurve, err := smoother.Bins(pt, devVals, opts.NBins, opts.DiscardN)
		if err != nil {
			return nil, err
		}
		rnaCurve, err := smoother.Bins(pt, rnaVals, opts.NBins, opts.DiscardN)
		if err != nil {
			return nil, err
		}

		r, p, err := correlate.PearsonWithP(devCurve.Values, rnaCurve.Values)
		if err != nil {
			return nil, err
		}

		out = append(out, correlate.TFGeneCor{
			TF:       motif,
			Gene:     gene,
			R:        r,
			P:        p,
			PeakTime: devCurve.Centers[devCurve.ArgMax()],
		})
	}

	if skipped > 0 {
		log.Println("tfactivity:", skipped, "motifs had no matching expressed gene and were skipped")
	}

	ps := make([]float64, len(out))
	for i := range out {
		ps[i] = out[i].P
	}
	for i, q := range correlate.BenjaminiHochberg(ps) {
		out[i].FDR = q
	}

	sort.Slice(out, func(i, j int) bool { return out[i].R > out[j].R })

	return out, nil
}

// Shortlist keeps TFs passing the correlation and FDR cuts.
func Shortlist(records []correlate.TFGeneCor, opts Options) []correlate.TFGeneCor {
	opts.setDefaults()

	out := make([]correlate.TFGeneCor, 0)
	for _, rec := range records {
		if rec.R > opts.MinR && rec.FDR < opts.MaxFDR {
			out = append(out, rec)
		}
	}

	return out
}

// EnrichmentRecord reports the Fisher exact test of a motif's hits among the
// trajectory-linked peaks against the remaining peak background.
type EnrichmentRecord struct {
	TF                string  `csv:"tf"`
	LinkedWith        int     `csv:"linked_with_motif"`
	LinkedWithout     int     `csv:"linked_without_motif"`
	BackgroundWith    int     `csv:"background_with_motif"`
	BackgroundWithout int     `csv:"background_without_motif"`
	OddsRatio         float64 `csv:"odds_ratio"`
	P                 float64 `csv:"p"`
	FDR               float64 `csv:"fdr"`
}

// MotifEnrichment tests, per TF, whether its motif is overrepresented in
// linkedPeaks relative to all peaks of the hit matrix. hits is a motif x peak
// matrix with nonzero entries marking motif presence. Peak names on both
// sides are normalized so ATAC exports with different peak-name encodings
// still match.
func MotifEnrichment(hits *scmatrix.Matrix, linkedPeaks []string) ([]EnrichmentRecord, error) {
	linked := make(map[string]bool, len(linkedPeaks))
	for _, p := range linkedPeaks {
		linked[normalizePeak(p)] = true
	}

	linkedCols := make([]int, 0, len(linkedPeaks))
	backgroundCols := make([]int, 0)
	for j, peak := range hits.Barcodes {
		if linked[normalizePeak(peak)] {
			linkedCols = append(linkedCols, j)
		} else {
			backgroundCols = append(backgroundCols, j)
		}
	}

	if len(linkedCols) == 0 {
		return nil, pfx.Err(errNoLinkedPeaks)
	}

	nMotifs, _ := hits.Dims()
	out := make([]EnrichmentRecord, 0, nMotifs)

	for mi := 0; mi < nMotifs; mi++ {
		row, err := hits.Row(hits.Features[mi])
		if err != nil {
			return nil, err
		}

		rec := EnrichmentRecord{TF: hits.Features[mi]}
		for _, j := range linkedCols {
			if row[j] > 0 {
				rec.LinkedWith++
			} else {
				rec.LinkedWithout++
			}
		}
		for _, j := range backgroundCols {
			if row[j] > 0 {
				rec.BackgroundWith++
			} else {
				rec.BackgroundWithout++
			}
		}

		_, _, _, twop := fet.FisherExactTest(rec.LinkedWith, rec.LinkedWithout, rec.BackgroundWith, rec.BackgroundWithout)
		rec.P = twop

		switch {
		case rec.LinkedWith == 0:
			rec.OddsRatio = 0
		case rec.LinkedWithout > 0 && rec.BackgroundWith > 0:
			rec.OddsRatio = (float64(rec.LinkedWith) * float64(rec.BackgroundWithout)) /
				(float64(rec.LinkedWithout) * float64(rec.BackgroundWith))
		default:
			rec.OddsRatio = math.Inf(1)
		}

		out = append(out, rec)
	}

	ps := make([]float64, len(out))
	for i := range out {
		ps[i] = out[i].P
	}
	for i, q := range correlate.BenjaminiHochberg(ps) {
		out[i].FDR = q
	}

	return out, nil
}

func normalizePeak(name string) string {
	p, err := peakset.ParsePeak(name)
	if err != nil {
		return name
	}

	return p.String()
}

// WriteEnrichment emits the enrichment table tab-delimited.
func WriteEnrichment(w io.Writer, records []EnrichmentRecord) error {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		cw := csv.NewWriter(out)
		cw.Comma = '\t'
		return gocsv.NewSafeCSVWriter(cw)
	})

	return pfx.Err(gocsv.Marshal(records, w))
}
