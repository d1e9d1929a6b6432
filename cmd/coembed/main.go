// coembed merges the RNA and ATAC cell annotations over the precomputed
// co-embedding, transfers cluster labels from the RNA cells onto the ATAC
// cells by majority vote of nearest neighbours, and writes the combined cell
// table plus a scatter of the first two latent dimensions.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/coembed"
	"github.com/cardiogenomics/fibronet/plots"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	var embeddingPath, rnaCellsPath, atacCellsPath, outPath, plotPath string
	var k int

	flag.StringVar(&embeddingPath, "embedding", "", "Path (or URL) to the co-embedding coordinates TSV: barcode plus latent dimensions.")
	flag.StringVar(&rnaCellsPath, "rna-cells", "", "Path to the RNA cell annotation TSV (with curated clusters).")
	flag.StringVar(&atacCellsPath, "atac-cells", "", "Path to the ATAC cell annotation TSV.")
	flag.StringVar(&outPath, "out", "cells.coembedded.tsv", "Output path for the merged cell table.")
	flag.StringVar(&plotPath, "plot", "", "Optional PNG path for a scatter of the first two latent dimensions by modality.")
	flag.IntVar(&k, "k", 15, "Neighbours consulted when transferring cluster labels.")
	flag.Parse()

	if embeddingPath == "" || rnaCellsPath == "" || atacCellsPath == "" {
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
	log.Println("Loaded", len(emb.Barcodes), "cells x", emb.Dims(), "latent dimensions")

	rnaCells, err := readCells(rnaCellsPath)
	if err != nil {
		return err
	}
	atacCells, err := readCells(atacCellsPath)
	if err != nil {
		return err
	}
	log.Println("Loaded", len(rnaCells), "RNA cells and", len(atacCells), "ATAC cells")

	labels := emb.TransferLabels(rnaCells, cellannot.Barcodes(atacCells), k)
	log.Println("Transferred cluster labels onto", len(labels), "ATAC cells")

	merged := make([]cellannot.Cell, 0, len(rnaCells)+len(atacCells))
	merged = append(merged, rnaCells...)
	unlabelled := 0
	for _, c := range atacCells {
		if cluster, exists := labels[c.Barcode]; exists {
			c.Cluster = cluster
		} else {
			unlabelled++
		}
		merged = append(merged, c)
	}
	if unlabelled > 0 {
		log.Println(unlabelled, "ATAC cells received no label (absent from the embedding)")
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if err := cellannot.WriteCells(outFile, merged); err != nil {
		return err
	}
	log.Println("Wrote", outPath)

	if plotPath == "" {
		return nil
	}

	series := make(map[string]*plots.Series)
	for _, c := range merged {
		coord, exists := emb.Coord(c.Barcode)
		if !exists || len(coord) < 2 {
			continue
		}
		s, exists := series[c.Modality]
		if !exists {
			s = &plots.Series{Name: c.Modality}
			series[c.Modality] = s
		}
		s.X = append(s.X, coord[0])
		s.Y = append(s.Y, coord[1])
	}

	flat := make([]plots.Series, 0, len(series))
	for _, s := range series {
		flat = append(flat, *s)
	}
	if err := plots.Scatter(plotPath, flat); err != nil {
		return err
	}
	log.Println("Wrote", plotPath)

	return nil
}

func readCells(path string) ([]cellannot.Cell, error) {
	fileBytes, err := fibronet.OpenFileOrURL(path)
	if err != nil {
		return nil, err
	}

	return cellannot.ReadCells(fileBytes)
}
