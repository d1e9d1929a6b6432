// peak2gene links accessibility peaks to genes whose transcription start site
// lies within a window of the peak midpoint, by correlating smoothed
// accessibility and expression along pseudotime across the paired cells. Both
// the full test table and the FDR-filtered link set are written.
package main

import (
	"bytes"
	"flag"
	"log"
	"os"

	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/correlate"
	"github.com/cardiogenomics/fibronet/pairing"
	"github.com/cardiogenomics/fibronet/peak2gene"
	"github.com/cardiogenomics/fibronet/peakset"
	"github.com/cardiogenomics/fibronet/scmatrix"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	var atacPath, atacFeatures, atacBarcodes string
	var rnaPath, rnaFeatures, rnaBarcodes string
	var pairsPath, cellsPath, genesPath, outPath, linksPath string
	var window, nBins, discardN, concurrency int
	var maxFDR float64
	var rawCounts bool

	flag.StringVar(&atacPath, "atac", "", "Path to the peak accessibility matrix (peak x ATAC cell).")
	flag.StringVar(&atacFeatures, "atac-features", "", "Features file when -atac is MatrixMarket.")
	flag.StringVar(&atacBarcodes, "atac-barcodes", "", "Barcodes file when -atac is MatrixMarket.")
	flag.StringVar(&rnaPath, "rna", "", "Path to the RNA expression matrix (gene x RNA cell).")
	flag.StringVar(&rnaFeatures, "rna-features", "", "Features file when -rna is MatrixMarket.")
	flag.StringVar(&rnaBarcodes, "rna-barcodes", "", "Barcodes file when -rna is MatrixMarket.")
	flag.StringVar(&pairsPath, "pairs", "", "Path to the ATAC-RNA pair table from paircells.")
	flag.StringVar(&cellsPath, "cells", "", "Path to the cell table with pseudotime.")
	flag.StringVar(&genesPath, "genes", "", "Optional gene coordinate TSV; the embedded lookup is used when empty.")
	flag.StringVar(&outPath, "out", "peak2gene.all.tsv", "Output path for the full peak-gene test table.")
	flag.StringVar(&linksPath, "links", "peak2gene.links.tsv", "Output path for the filtered link set.")
	flag.IntVar(&window, "window", 250_000, "Maximum bp between peak midpoint and TSS.")
	flag.IntVar(&nBins, "bins", 50, "Pseudotime bins for smoothing.")
	flag.IntVar(&discardN, "discard", 1, "Extreme values discarded per bin before averaging.")
	flag.IntVar(&concurrency, "concurrency", 4, "Peaks tested in parallel.")
	flag.Float64Var(&maxFDR, "max-fdr", 1e-4, "Maximum FDR for a kept link.")
	flag.BoolVar(&rawCounts, "raw-counts", false, "Set when -rna holds raw counts; applies per-cell scaling and log1p.")
	flag.Parse()

	if atacPath == "" || rnaPath == "" || pairsPath == "" || cellsPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	atac, err := scmatrix.Load(atacPath, atacFeatures, atacBarcodes)
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

	genes, err := loadGenes(genesPath)
	if err != nil {
		return err
	}

	opts := peak2gene.Options{
		Window:      window,
		NBins:       nBins,
		DiscardN:    discardN,
		MaxFDR:      maxFDR,
		Concurrency: concurrency,
	}

	records, err := peak2gene.Link(atac, rna, pairs, cells, genes, opts)
	if err != nil {
		return err
	}
	log.Println("Tested", len(records), "peak-gene pairs")

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if err := correlate.WritePeakGeneCors(outFile, records); err != nil {
		return err
	}
	log.Println("Wrote", outPath)

	links := peak2gene.Filter(records, opts)
	log.Println("Kept", len(links), "links at r > 0 and FDR <", maxFDR)

	linksFile, err := os.Create(linksPath)
	if err != nil {
		return err
	}
	defer linksFile.Close()

	if err := correlate.WritePeakGeneCors(linksFile, links); err != nil {
		return err
	}
	log.Println("Wrote", linksPath)

	return nil
}

func loadGenes(path string) (*peakset.GeneIndex, error) {
	if path == "" {
		genes, err := peakset.LoadGenes()
		if err != nil {
			return nil, err
		}
		return peakset.NewGeneIndex(genes), nil
	}

	fileBytes, err := fibronet.OpenFileOrURL(path)
	if err != nil {
		return nil, err
	}
	genes, err := peakset.ReadGenes(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, err
	}

	return peakset.NewGeneIndex(genes), nil
}
