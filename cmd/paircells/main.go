// paircells matches each ATAC cell to its nearest RNA cell in the shared
// co-embedding so that downstream stages can treat chromatin and expression
// measurements as if they came from the same cell. Matching is greedy and
// unique by default; -allow-reuse relaxes uniqueness for stranded ATAC cells.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/coembed"
	"github.com/cardiogenomics/fibronet/pairing"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	var embeddingPath, cellsPath, outPath string
	var k, concurrency int
	var sameCluster, allowReuse bool

	flag.StringVar(&embeddingPath, "embedding", "", "Path (or URL) to the co-embedding coordinates TSV.")
	flag.StringVar(&cellsPath, "cells", "", "Path to the annotated cell table (both modalities).")
	flag.StringVar(&outPath, "out", "pairs.tsv", "Output path for the ATAC-RNA pair table.")
	flag.IntVar(&k, "k", 5, "Nearest RNA candidates considered per ATAC cell.")
	flag.IntVar(&concurrency, "concurrency", 4, "Parallel neighbor searches.")
	flag.BoolVar(&sameCluster, "same-cluster", true, "Restrict candidates to RNA cells in the ATAC cell's cluster.")
	flag.BoolVar(&allowReuse, "allow-reuse", false, "Let an RNA cell back more than one ATAC cell when uniqueness strands cells.")
	flag.Parse()

	if embeddingPath == "" || cellsPath == "" {
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

	rna := cellannot.Filter(cells, func(c cellannot.Cell) bool { return c.Modality == cellannot.ModalityRNA })
	atac := cellannot.Filter(cells, func(c cellannot.Cell) bool { return c.Modality == cellannot.ModalityATAC })
	log.Println("Pairing", len(atac), "ATAC cells against", len(rna), "RNA cells")

	pairs, err := pairing.PairCells(emb, rna, atac, pairing.Options{
		K:           k,
		SameCluster: sameCluster,
		AllowReuse:  allowReuse,
		Concurrency: concurrency,
	})
	if err != nil {
		return err
	}
	log.Println("Matched", len(pairs), "pairs")

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if err := pairing.WritePairs(outFile, pairs); err != nil {
		return err
	}
	log.Println("Wrote", outPath)

	return nil
}
