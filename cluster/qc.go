package cluster

import (
	"encoding/csv"
	"io"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/scmatrix"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
)

// Flags mirroring the manual cluster-removal judgments of the original
// analysis: clusters are reported, not silently dropped, so the calls stay
// reviewable.
const (
	FlagSmall     = "small"
	FlagLowCounts = "low_counts"
	FlagOffTarget = "off_target"
)

type QCRecord struct {
	Cluster        string  `csv:"cluster"`
	Cells          int     `csv:"n_cells"`
	MedianCounts   float64 `csv:"median_counts"`
	MedianFeatures float64 `csv:"median_features"`
	MarkerMean     float64 `csv:"marker_mean"`
	Flag           string  `csv:"flag"`
}

type FlagRules struct {
	MinCells        int
	MinMedianCounts float64

	// MarkerGene is a lineage marker (e.g. a pan-fibroblast gene) whose mean
	// expression must reach MinMarkerMean for the cluster to count as
	// on-target.
	MarkerGene    string
	MinMarkerMean float64
}

// Summarize computes per-cluster QC over the count matrix: cluster size,
// median library size, median detected features, and mean expression of the
// rules' marker gene. Cells missing from the matrix are ignored.
func Summarize(cells []cellannot.Cell, counts *scmatrix.Matrix, rules FlagRules) ([]QCRecord, error) {
	colSums := counts.ColSums()
	nFeat, _ := counts.Dims()

	// Detected features per cell
	detected := make([]float64, len(counts.Barcodes))
	for i := 0; i < nFeat; i++ {
		for j := range counts.Barcodes {
			if counts.At(i, j) > 0 {
				detected[j]++
			}
		}
	}

	var marker []float64
	if rules.MarkerGene != "" {
		var err error
		marker, err = counts.Row(rules.MarkerGene)
		if err != nil {
			return nil, pfx.Err(err)
		}
	}

	out := make([]QCRecord, 0)
	for clusterName, members := range cellannot.ByCluster(cells) {
		rec := QCRecord{Cluster: clusterName, Cells: len(members)}

		libs := make([]float64, 0, len(members))
		feats := make([]float64, 0, len(members))
		markerSum, markerN := 0.0, 0

		for _, c := range members {
			j, exists := counts.BarcodeIndex(c.Barcode)
			if !exists {
				continue
			}
			libs = append(libs, colSums[j])
			feats = append(feats, detected[j])
			if marker != nil {
				markerSum += marker[j]
				markerN++
			}
		}

		if len(libs) > 0 {
			var err error
			if rec.MedianCounts, err = stats.Median(libs); err != nil {
				return nil, pfx.Err(err)
			}
			if rec.MedianFeatures, err = stats.Median(feats); err != nil {
				return nil, pfx.Err(err)
			}
		}
		if markerN > 0 {
			rec.MarkerMean = markerSum / float64(markerN)
		}

		rec.Flag = flagFor(rec, rules)
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Cluster < out[j].Cluster })

	return out, nil
}

func flagFor(rec QCRecord, rules FlagRules) string {
	switch {
	case rules.MinCells > 0 && rec.Cells < rules.MinCells:
		return FlagSmall
	case rules.MinMedianCounts > 0 && rec.MedianCounts < rules.MinMedianCounts:
		return FlagLowCounts
	case rules.MarkerGene != "" && rec.MarkerMean < rules.MinMarkerMean:
		return FlagOffTarget
	}

	return ""
}

// WriteRecords emits the QC table tab-delimited.
func WriteRecords(w io.Writer, records []QCRecord) error {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		cw := csv.NewWriter(out)
		cw.Comma = '\t'
		return gocsv.NewSafeCSVWriter(cw)
	})

	return pfx.Err(gocsv.Marshal(records, w))
}

// Keep returns the cells belonging to unflagged clusters.
func Keep(cells []cellannot.Cell, records []QCRecord) []cellannot.Cell {
	flagged := make(map[string]bool)
	for _, rec := range records {
		if rec.Flag != "" {
			flagged[rec.Cluster] = true
		}
	}

	return cellannot.Filter(cells, func(c cellannot.Cell) bool { return !flagged[c.Cluster] })
}
