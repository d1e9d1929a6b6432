// subcluster re-clusters the co-embedded cells with k-means, computes
// per-cluster QC against the count matrix, and flags clusters matching the
// heuristic drop rules (too small, low counts, marker-negative). Flagged
// clusters are reported and, with -drop, removed from the output table.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/cluster"
	"github.com/cardiogenomics/fibronet/coembed"
	"github.com/cardiogenomics/fibronet/scmatrix"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	var embeddingPath, cellsPath, countsPath, featuresPath, barcodesPath string
	var outPath, qcPath, markerGene string
	var k, maxIter, minCells int
	var seed int64
	var minMedianCounts, minMarkerMean float64
	var drop bool

	flag.StringVar(&embeddingPath, "embedding", "", "Path (or URL) to the co-embedding coordinates TSV.")
	flag.StringVar(&cellsPath, "cells", "", "Path to the merged cell annotation TSV from coembed.")
	flag.StringVar(&countsPath, "counts", "", "Path to the RNA count matrix (dense TSV, or MatrixMarket with -features/-barcodes).")
	flag.StringVar(&featuresPath, "features", "", "Features file when -counts is MatrixMarket.")
	flag.StringVar(&barcodesPath, "barcodes", "", "Barcodes file when -counts is MatrixMarket.")
	flag.StringVar(&outPath, "out", "cells.subclustered.tsv", "Output path for the re-clustered cell table.")
	flag.StringVar(&qcPath, "qc", "clusters.qc.tsv", "Output path for the per-cluster QC table.")
	flag.StringVar(&markerGene, "marker", "POSTN", "Lineage marker gene; clusters below -min-marker-mean are flagged off-target.")
	flag.IntVar(&k, "k", 8, "Number of sub-clusters.")
	flag.IntVar(&maxIter, "max-iter", 100, "Maximum k-means iterations.")
	flag.IntVar(&minCells, "min-cells", 50, "Clusters smaller than this are flagged.")
	flag.Int64Var(&seed, "seed", 1, "Random seed for k-means++ initialization.")
	flag.Float64Var(&minMedianCounts, "min-median-counts", 0, "Clusters with lower median library size are flagged.")
	flag.Float64Var(&minMarkerMean, "min-marker-mean", 0.25, "Minimum mean marker expression for an on-target cluster.")
	flag.BoolVar(&drop, "drop", false, "Remove flagged clusters from the output table.")
	flag.Parse()

	if embeddingPath == "" || cellsPath == "" || countsPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	embBytes, err := fibronet.OpenFileOrURL(embeddingPath)
	if err != nil {
		return err
	}
	emb, err := coembed.ReadEmbedding(embBytes)
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

	counts, err := scmatrix.Load(countsPath, featuresPath, barcodesPath)
	if err != nil {
		return err
	}
	nFeat, nCells := counts.Dims()
	log.Println("Loaded", nFeat, "features x", nCells, "cells of counts")

	// Cluster only cells with embedding coordinates, in table order.
	points := make([][]float64, 0, len(cells))
	pointCell := make([]int, 0, len(cells))
	for i, c := range cells {
		if coord, exists := emb.Coord(c.Barcode); exists {
			points = append(points, coord)
			pointCell = append(pointCell, i)
		}
	}
	log.Println("Clustering", len(points), "of", len(cells), "cells into", k, "sub-clusters")

	assign, _, err := cluster.KMeans(points, k, maxIter, seed)
	if err != nil {
		return err
	}

	for pi, ci := range pointCell {
		cells[ci].Cluster = fmt.Sprintf("fib.%d", assign[pi])
	}

	// Cluster size histogram on the terminal for a quick sanity check.
	sizes := make(map[string]int)
	for _, c := range cells {
		sizes[c.Cluster]++
	}
	sizeVals := make([]float64, 0, len(sizes))
	for _, n := range sizes {
		sizeVals = append(sizeVals, float64(n))
	}
	hist := histogram.Hist(10, sizeVals)
	if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(40)); err != nil {
		return err
	}

	rules := cluster.FlagRules{
		MinCells:        minCells,
		MinMedianCounts: minMedianCounts,
		MarkerGene:      markerGene,
		MinMarkerMean:   minMarkerMean,
	}

	records, err := cluster.Summarize(cells, counts, rules)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.Flag != "" {
			log.Printf("Cluster %s flagged %q (%d cells, median counts %.0f, marker mean %.2f)\n",
				rec.Cluster, rec.Flag, rec.Cells, rec.MedianCounts, rec.MarkerMean)
		}
	}

	qcFile, err := os.Create(qcPath)
	if err != nil {
		return err
	}
	defer qcFile.Close()

	if err := cluster.WriteRecords(qcFile, records); err != nil {
		return err
	}
	log.Println("Wrote", qcPath)

	out := cells
	if drop {
		out = cluster.Keep(cells, records)
		log.Println("Dropped flagged clusters:", len(cells)-len(out), "cells removed")
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if err := cellannot.WriteCells(outFile, out); err != nil {
		return err
	}
	log.Println("Wrote", outPath)

	return nil
}
