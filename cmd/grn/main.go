// grn assembles the regulatory network: for each shortlisted TF and each gene
// it could regulate, an edge is kept when a motif-bearing peak links the TF to
// the gene and the two expression profiles correlate along pseudotime. Edges
// are grouped into connected modules and written as a TSV table plus a
// Graphviz DOT rendering.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/correlate"
	"github.com/cardiogenomics/fibronet/grn"
	"github.com/cardiogenomics/fibronet/scmatrix"
	"github.com/cardiogenomics/fibronet/tfactivity"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	var tfsPath, linksPath, hitsPath, hitsFeatures, hitsBarcodes string
	var rnaPath, rnaFeatures, rnaBarcodes string
	var cellsPath, outPath, dotPath, enrichPath string
	var nBins, discardN int
	var minExprR float64
	var rawCounts bool

	flag.StringVar(&tfsPath, "tfs", "", "Path to the shortlisted TF table from tfselect.")
	flag.StringVar(&linksPath, "links", "", "Path to the filtered peak-gene link table from peak2gene.")
	flag.StringVar(&hitsPath, "hits", "", "Path to the motif hit matrix (motif x peak, nonzero marks presence).")
	flag.StringVar(&hitsFeatures, "hits-features", "", "Features file when -hits is MatrixMarket.")
	flag.StringVar(&hitsBarcodes, "hits-barcodes", "", "Barcodes file when -hits is MatrixMarket.")
	flag.StringVar(&rnaPath, "rna", "", "Path to the RNA expression matrix (gene x RNA cell).")
	flag.StringVar(&rnaFeatures, "rna-features", "", "Features file when -rna is MatrixMarket.")
	flag.StringVar(&rnaBarcodes, "rna-barcodes", "", "Barcodes file when -rna is MatrixMarket.")
	flag.StringVar(&cellsPath, "cells", "", "Path to the cell table with pseudotime.")
	flag.StringVar(&outPath, "out", "grn.edges.tsv", "Output path for the edge table.")
	flag.StringVar(&dotPath, "dot", "grn.dot", "Output path for the Graphviz rendering.")
	flag.StringVar(&enrichPath, "enrichment", "", "Optional output path for motif enrichment over the linked peaks.")
	flag.IntVar(&nBins, "bins", 50, "Pseudotime bins for smoothing.")
	flag.IntVar(&discardN, "discard", 1, "Extreme values discarded per bin before averaging.")
	flag.Float64Var(&minExprR, "min-expr-r", 0.25, "Minimum TF-target expression correlation for an edge.")
	flag.BoolVar(&rawCounts, "raw-counts", false, "Set when -rna holds raw counts; applies per-cell scaling and log1p.")
	flag.Parse()

	if tfsPath == "" || linksPath == "" || hitsPath == "" || rnaPath == "" || cellsPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	tfBytes, err := fibronet.OpenFileOrURL(tfsPath)
	if err != nil {
		return err
	}
	tfs, err := correlate.ReadTFGeneCors(tfBytes)
	if err != nil {
		return err
	}

	linkBytes, err := fibronet.OpenFileOrURL(linksPath)
	if err != nil {
		return err
	}
	links, err := correlate.ReadPeakGeneCors(linkBytes)
	if err != nil {
		return err
	}

	hits, err := scmatrix.Load(hitsPath, hitsFeatures, hitsBarcodes)
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

	cellBytes, err := fibronet.OpenFileOrURL(cellsPath)
	if err != nil {
		return err
	}
	cells, err := cellannot.ReadCells(cellBytes)
	if err != nil {
		return err
	}

	log.Println("Assembling network from", len(tfs), "TFs and", len(links), "peak-gene links")

	edges, err := grn.Assemble(tfs, links, hits, rna, cells, grn.Options{
		MinExprR: minExprR,
		NBins:    nBins,
		DiscardN: discardN,
	})
	if err != nil {
		return err
	}

	summary, err := grn.Summarize(edges)
	if err != nil {
		return err
	}
	log.Printf("Network: %d edges, %d TFs, %d targets; mean out-degree %.1f (median %.0f), largest regulon %s (%d targets)\n",
		summary.Edges, summary.TFs, summary.Targets, summary.MeanOut, summary.MedianOut, summary.MaxOutTF, summary.MaxOutSize)

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if err := grn.WriteEdges(outFile, edges); err != nil {
		return err
	}
	log.Println("Wrote", outPath)

	dotFile, err := os.Create(dotPath)
	if err != nil {
		return err
	}
	defer dotFile.Close()

	if err := grn.WriteDOT(dotFile, edges); err != nil {
		return err
	}
	log.Println("Wrote", dotPath)

	if enrichPath != "" {
		if err := writeEnrichment(enrichPath, hits, links); err != nil {
			return err
		}
		log.Println("Wrote", enrichPath)
	}

	return nil
}

// writeEnrichment runs the Fisher exact test of each motif over the linked
// peaks against the remaining peak background.
func writeEnrichment(path string, hits *scmatrix.Matrix, links []correlate.PeakGeneCor) error {
	linkedPeaks := make([]string, 0, len(links))
	seen := make(map[string]bool)
	for _, l := range links {
		if !seen[l.Peak] {
			seen[l.Peak] = true
			linkedPeaks = append(linkedPeaks, l.Peak)
		}
	}

	records, err := tfactivity.MotifEnrichment(hits, linkedPeaks)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tfactivity.WriteEnrichment(f, records)
}
