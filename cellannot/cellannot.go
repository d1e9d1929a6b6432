// Package cellannot holds per-cell annotations shared by every pipeline
// stage: modality, donor descriptors, cluster assignment, and (once the
// trajectory stage has run) pseudotime.
package cellannot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

const (
	ModalityRNA  = "rna"
	ModalityATAC = "atac"
)

// MaybeFloat is a float64 that round-trips empty/NA CSV fields as NaN, for
// columns like pseudotime that are unset until a later stage fills them in.
type MaybeFloat float64

func (m *MaybeFloat) UnmarshalCSV(s string) error {
	if s == "" || s == "NA" || s == "NaN" {
		*m = MaybeFloat(math.NaN())
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*m = MaybeFloat(v)

	return nil
}

func (m MaybeFloat) MarshalCSV() (string, error) {
	if math.IsNaN(float64(m)) {
		return "NA", nil
	}

	return strconv.FormatFloat(float64(m), 'g', -1, 64), nil
}

func (m MaybeFloat) IsSet() bool {
	return !math.IsNaN(float64(m))
}

type Cell struct {
	Barcode    string     `csv:"barcode"`
	Modality   string     `csv:"modality"`
	Patient    string     `csv:"patient"`
	Region     string     `csv:"region"`
	Group      string     `csv:"group"`
	Cluster    string     `csv:"cluster"`
	Pseudotime MaybeFloat `csv:"pseudotime"`
}

// ReadCells parses a tab-delimited cell annotation table. Cells whose
// modality is neither rna nor atac are rejected. Tables written before the
// trajectory stage carry no pseudotime column; those cells come back unset
// rather than at zero.
func ReadCells(fileBytes []byte) ([]Cell, error) {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = '\t'
		r.LazyQuotes = true
		return r
	})

	records := []*Cell{}
	if err := gocsv.UnmarshalBytes(fileBytes, &records); err != nil {
		return nil, pfx.Err(err)
	}

	// gocsv leaves fields whose column is absent at their zero value, and
	// MaybeFloat's zero is a set 0.
	hasPseudotime := headerHasColumn(fileBytes, "pseudotime")

	out := make([]Cell, 0, len(records))
	for _, rec := range records {
		if rec.Modality != ModalityRNA && rec.Modality != ModalityATAC {
			return nil, pfx.Err(fmt.Errorf("cellannot: barcode %s has unknown modality %q", rec.Barcode, rec.Modality))
		}
		if !hasPseudotime {
			rec.Pseudotime = MaybeFloat(math.NaN())
		}
		out = append(out, *rec)
	}

	return out, nil
}

func headerHasColumn(fileBytes []byte, name string) bool {
	r := csv.NewReader(bytes.NewReader(fileBytes))
	r.Comma = '\t'
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return false
	}
	for _, col := range header {
		if col == name {
			return true
		}
	}

	return false
}

// WriteCells emits the annotation table tab-delimited, suitable for the next
// stage's ReadCells.
func WriteCells(w io.Writer, cells []Cell) error {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		cw := csv.NewWriter(out)
		cw.Comma = '\t'
		return gocsv.NewSafeCSVWriter(cw)
	})

	return pfx.Err(gocsv.Marshal(cells, w))
}

// Filter returns the cells satisfying pred, preserving order.
func Filter(cells []Cell, pred func(Cell) bool) []Cell {
	out := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if pred(c) {
			out = append(out, c)
		}
	}

	return out
}

func Barcodes(cells []Cell) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, c.Barcode)
	}

	return out
}

// ByCluster groups cells under their cluster assignment.
func ByCluster(cells []Cell) map[string][]Cell {
	out := make(map[string][]Cell)
	for _, c := range cells {
		out[c.Cluster] = append(out[c.Cluster], c)
	}

	return out
}

// ByBarcode indexes cells by barcode for pairing lookups.
func ByBarcode(cells []Cell) map[string]Cell {
	out := make(map[string]Cell, len(cells))
	for _, c := range cells {
		out[c.Barcode] = c
	}

	return out
}
