// tfselect shortlists candidate regulator TFs: motif deviation z-scores and
// TF expression are smoothed over pseudotime bins across the paired cells and
// correlated, keeping TFs whose chromatin activity tracks their own
// expression. The full correlation table and the shortlist are both written,
// and -plot renders the smoothed curves of the top shortlisted TFs.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/correlate"
	"github.com/cardiogenomics/fibronet/pairing"
	"github.com/cardiogenomics/fibronet/plots"
	"github.com/cardiogenomics/fibronet/scmatrix"
	"github.com/cardiogenomics/fibronet/smoother"
	"github.com/cardiogenomics/fibronet/tfactivity"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	var devPath, devFeatures, devBarcodes string
	var rnaPath, rnaFeatures, rnaBarcodes string
	var pairsPath, cellsPath, outPath, shortlistPath, plotPath string
	var nBins, discardN, plotTop int
	var minR, maxFDR float64
	var rawCounts bool

	flag.StringVar(&devPath, "dev", "", "Path to the motif deviation z-score matrix (TF x ATAC cell).")
	flag.StringVar(&devFeatures, "dev-features", "", "Features file when -dev is MatrixMarket.")
	flag.StringVar(&devBarcodes, "dev-barcodes", "", "Barcodes file when -dev is MatrixMarket.")
	flag.StringVar(&rnaPath, "rna", "", "Path to the RNA expression matrix (gene x RNA cell).")
	flag.StringVar(&rnaFeatures, "rna-features", "", "Features file when -rna is MatrixMarket.")
	flag.StringVar(&rnaBarcodes, "rna-barcodes", "", "Barcodes file when -rna is MatrixMarket.")
	flag.StringVar(&pairsPath, "pairs", "", "Path to the ATAC-RNA pair table from paircells.")
	flag.StringVar(&cellsPath, "cells", "", "Path to the cell table with pseudotime.")
	flag.StringVar(&outPath, "out", "tf.correlations.tsv", "Output path for the full TF correlation table.")
	flag.StringVar(&shortlistPath, "shortlist", "tf.shortlist.tsv", "Output path for the shortlisted TFs.")
	flag.StringVar(&plotPath, "plot", "", "Optional PNG of smoothed expression curves for the top shortlisted TFs.")
	flag.IntVar(&nBins, "bins", 50, "Pseudotime bins for smoothing.")
	flag.IntVar(&discardN, "discard", 1, "Extreme values discarded per bin before averaging.")
	flag.IntVar(&plotTop, "plot-top", 5, "Shortlisted TFs to draw when -plot is set.")
	flag.Float64Var(&minR, "min-r", 0.5, "Minimum deviation-expression correlation for the shortlist.")
	flag.Float64Var(&maxFDR, "max-fdr", 1e-4, "Maximum FDR for the shortlist.")
	flag.BoolVar(&rawCounts, "raw-counts", false, "Set when -rna holds raw counts; applies per-cell scaling and log1p.")
	flag.Parse()

	if devPath == "" || rnaPath == "" || pairsPath == "" || cellsPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	dev, err := scmatrix.Load(devPath, devFeatures, devBarcodes)
	if err != nil {
		return err
	}
	rna, err := scmatrix.Load(rnaPath, rnaFeatures, rnaBarcodes)
	if err != nil {
		return err
	}
	if rawCounts {
		rna.CPMLog1p()
	}

	pairBytes, err := fibronet.OpenFileOrURL(pairsPath)
	if err != nil {
		return err
	}
	pairs, err := pairing.ReadPairs(pairBytes)
	if err != nil {
		return err
	}

	cellBytes, err := fibronet.OpenFileOrURL(cellsPath)
	if err != nil {
		return err
	}
	cells, err := cellannot.ReadCells(cellBytes)
	if err != nil {
		return err
	}

	opts := tfactivity.Options{NBins: nBins, DiscardN: discardN, MinR: minR, MaxFDR: maxFDR}

	records, err := tfactivity.SelectTFs(dev, rna, pairs, cells, opts)
	if err != nil {
		return err
	}
	log.Println("Tested", len(records), "TFs")

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if err := correlate.WriteTFGeneCors(outFile, records); err != nil {
		return err
	}
	log.Println("Wrote", outPath)

	short := tfactivity.Shortlist(records, opts)
	log.Println("Shortlisted", len(short), "TFs at r >", minR, "and FDR <", maxFDR)

	shortFile, err := os.Create(shortlistPath)
	if err != nil {
		return err
	}
	defer shortFile.Close()

	if err := correlate.WriteTFGeneCors(shortFile, short); err != nil {
		return err
	}
	log.Println("Wrote", shortlistPath)

	if plotPath != "" && len(short) > 0 {
		if err := plotTopTFs(plotPath, short, rna, pairs, cells, opts, plotTop); err != nil {
			return err
		}
		log.Println("Wrote", plotPath)
	}

	return nil
}

// plotTopTFs draws the smoothed expression of the strongest shortlisted TFs
// over the paired cells' pseudotime.
func plotTopTFs(path string, short []correlate.TFGeneCor, rna *scmatrix.Matrix, pairs []pairing.Pair, cells []cellannot.Cell, opts tfactivity.Options, top int) error {
	ptByBarcode := make(map[string]float64)
	for _, c := range cells {
		if c.Pseudotime.IsSet() {
			ptByBarcode[c.Barcode] = float64(c.Pseudotime)
		}
	}

	pt := make([]float64, 0, len(pairs))
	cols := make([]int, 0, len(pairs))
	for _, p := range pairs {
		v, exists := ptByBarcode[p.RNABarcode]
		if !exists {
			continue
		}
		j, ok := rna.BarcodeIndex(p.RNABarcode)
		if !ok {
			continue
		}
		pt = append(pt, v)
		cols = append(cols, j)
	}

	if top > len(short) {
		top = len(short)
	}

	series := make([]plots.Series, 0, top)
	for _, rec := range short[:top] {
		row, err := rna.Row(rec.Gene)
		if err != nil {
			return err
		}

		vals := make([]float64, len(cols))
		for i, j := range cols {
			vals[i] = row[j]
		}

		curve, err := smoother.Bins(pt, vals, opts.NBins, opts.DiscardN)
		if err != nil {
			return err
		}

		series = append(series, plots.Series{Name: rec.Gene, X: curve.Centers, Y: curve.Values})
	}

	return plots.Curves(path, series)
}
