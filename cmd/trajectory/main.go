// trajectory assigns pseudotime along the fibrosis axis: diffusion-map
// coordinates computed upstream are smoothed, rank-scaled to [0,1], and
// oriented so the chosen root cluster sits at zero. Cells outside the listed
// trajectory clusters get an unset pseudotime.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/coembed"
	"github.com/cardiogenomics/fibronet/plots"
	"github.com/cardiogenomics/fibronet/traject"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	var dcPath, cellsPath, outPath, plotPath, clusterList, rootCluster string
	var smoothK int

	flag.StringVar(&dcPath, "diffusion", "", "Path (or URL) to the diffusion-component coordinates TSV.")
	flag.StringVar(&cellsPath, "cells", "", "Path to the clustered cell table.")
	flag.StringVar(&outPath, "out", "cells.pseudotime.tsv", "Output path for the cell table with pseudotime.")
	flag.StringVar(&plotPath, "plot", "", "Optional PNG of pseudotime against the first diffusion component.")
	flag.StringVar(&clusterList, "clusters", "", "Comma-delimited clusters forming the trajectory (empty keeps all).")
	flag.StringVar(&rootCluster, "root", "", "Cluster anchoring pseudotime zero.")
	flag.IntVar(&smoothK, "smooth-k", 10, "Neighbors averaged when denoising the first diffusion component.")
	flag.Parse()

	if dcPath == "" || cellsPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	dcBytes, err := fibronet.OpenFileOrURL(dcPath)
	if err != nil {
		return err
	}
	dcs, err := coembed.ReadEmbedding(dcBytes)
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

	var keepClusters []string
	if clusterList != "" {
		keepClusters = strings.Split(clusterList, ",")
	}

	pt, err := traject.Fit(dcs, cells, keepClusters, smoothK)
	if err != nil {
		return err
	}
	log.Println("Fitted pseudotime for", len(pt), "cells")

	if rootCluster != "" {
		pt = traject.Orient(pt, cells, rootCluster)
	}

	cells = traject.Apply(cells, pt)

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if err := cellannot.WriteCells(outFile, cells); err != nil {
		return err
	}
	log.Println("Wrote", outPath)

	if plotPath != "" {
		series := plots.Series{Name: "cells"}
		for _, c := range cells {
			if !c.Pseudotime.IsSet() {
				continue
			}
			i, exists := dcs.Index(c.Barcode)
			if !exists {
				continue
			}
			series.X = append(series.X, float64(c.Pseudotime))
			series.Y = append(series.Y, dcs.Coords[i][0])
		}
		if err := plots.Scatter(plotPath, []plots.Series{series}); err != nil {
			return err
		}
		log.Println("Wrote", plotPath)
	}

	return nil
}
