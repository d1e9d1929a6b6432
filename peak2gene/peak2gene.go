// Package peak2gene links chromatin accessibility peaks to nearby genes by
// correlating their smoothed signals along pseudotime across the paired
// cells.
package peak2gene

import (
	"log"
	"sort"
	"sync"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/correlate"
	"github.com/cardiogenomics/fibronet/pairing"
	"github.com/cardiogenomics/fibronet/peakset"
	"github.com/cardiogenomics/fibronet/scmatrix"
	"github.com/cardiogenomics/fibronet/smoother"
)

type Options struct {
	// Window is the maximum distance in bp between peak midpoint and TSS.
	Window int

	NBins    int
	DiscardN int

	// MaxFDR bounds the q-value of kept links; only positive correlations
	// qualify as links regardless.
	MaxFDR float64

	Concurrency int
}

func (o *Options) setDefaults() {
	if o.Window == 0 {
		o.Window = 250_000
	}
	if o.NBins == 0 {
		o.NBins = 50
	}
	if o.MaxFDR == 0 {
		o.MaxFDR = 1e-4
	}
	if o.Concurrency < 1 {
		o.Concurrency = 4
	}
}

// Link tests every (peak, nearby gene) pair and returns the full correlation
// table, FDR-corrected across all tests. Genes absent from the RNA matrix
// and peak names that do not parse are skipped with logged counts.
func Link(atac, rna *scmatrix.Matrix, pairs []pairing.Pair, cells []cellannot.Cell, genes *peakset.GeneIndex, opts Options) ([]correlate.PeakGeneCor, error) {
	opts.setDefaults()

	ptByBarcode := make(map[string]float64)
	for _, c := range cells {
		if c.Pseudotime.IsSet() {
			ptByBarcode[c.Barcode] = float64(c.Pseudotime)
		}
	}

	type pairCol struct {
		atacCol int
		rnaCol  int
	}

	cols := make([]pairCol, 0, len(pairs))
	pt := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		t, ptOK := ptByBarcode[p.RNABarcode]
		if !ptOK {
			continue
		}
		ac, acOK := atac.BarcodeIndex(p.ATACBarcode)
		rc, rcOK := rna.BarcodeIndex(p.RNABarcode)
		if !acOK || !rcOK {
			continue
		}

		cols = append(cols, pairCol{atacCol: ac, rnaCol: rc})
		pt = append(pt, t)
	}

	if len(cols) == 0 {
		return nil, pfx.Err(errNoPairedCells)
	}

	var (
		mu          sync.Mutex
		out         []correlate.PeakGeneCor
		badPeaks    int
		absentGenes int
		firstErr    error
	)

	sem := make(chan bool, opts.Concurrency)
	var wg sync.WaitGroup

	nPeaks, _ := atac.Dims()
	for pi := 0; pi < nPeaks; pi++ {
		sem <- true
		wg.Add(1)

		go func(pi int) {
			defer wg.Done()
			defer func() { <-sem }()

			peakName := atac.Features[pi]
			peak, err := peakset.ParsePeak(peakName)
			if err != nil {
				mu.Lock()
				badPeaks++
				mu.Unlock()
				return
			}

			nearby := genes.NearbyGenes(peak, opts.Window)
			if len(nearby) == 0 {
				return
			}

			peakRow, err := atac.Row(peakName)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			accVals := make([]float64, len(cols))
			for i, c := range cols {
				accVals[i] = peakRow[c.atacCol]
			}

			accCurve, err := smoother.Bins(pt, accVals, opts.NBins, opts.DiscardN)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			for _, gene := range nearby {
				if !rna.HasFeature(gene.Symbol) {
					mu.Lock()
					absentGenes++
					mu.Unlock()
					continue
				}

				rnaRow, err := rna.Row(gene.Symbol)
				if err != nil {
					continue
				}

				exprVals := make([]float64, len(cols))
				for i, c := range cols {
					exprVals[i] = rnaRow[c.rnaCol]
				}

				exprCurve, err := smoother.Bins(pt, exprVals, opts.NBins, opts.DiscardN)
				if err != nil {
					continue
				}

				r, p, err := correlate.PearsonWithP(accCurve.Values, exprCurve.Values)
				if err != nil {
					continue
				}

				mu.Lock()
				out = append(out, correlate.PeakGeneCor{
					Peak:        peak.String(),
					Gene:        gene.Symbol,
					R:           r,
					P:           p,
					PeakTime:    accCurve.Centers[accCurve.ArgMax()],
					DistanceTSS: peakset.DistanceToTSS(peak, gene),
				})
				mu.Unlock()
			}
		}(pi)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if badPeaks > 0 {
		log.Println("peak2gene:", badPeaks, "feature names did not parse as peaks")
	}
	if absentGenes > 0 {
		log.Println("peak2gene:", absentGenes, "nearby genes were absent from the RNA matrix")
	}

	// Deterministic order before FDR so reruns emit identical tables.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Peak != out[j].Peak {
			return out[i].Peak < out[j].Peak
		}
		return out[i].Gene < out[j].Gene
	})

	ps := make([]float64, len(out))
	for i := range out {
		ps[i] = out[i].P
	}
	for i, q := range correlate.BenjaminiHochberg(ps) {
		out[i].FDR = q
	}

	return out, nil
}

// Filter keeps positively correlated links under the FDR bound.
func Filter(records []correlate.PeakGeneCor, opts Options) []correlate.PeakGeneCor {
	opts.setDefaults()

	out := make([]correlate.PeakGeneCor, 0)
	for _, rec := range records {
		if rec.R > 0 && rec.FDR < opts.MaxFDR {
			out = append(out, rec)
		}
	}

	return out
}
