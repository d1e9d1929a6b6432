package correlate

import (
	"encoding/csv"
	"io"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// TFGeneCor records one TF whose smoothed motif-deviation curve was tested
// against its gene's smoothed expression along pseudotime.
type TFGeneCor struct {
	TF       string  `csv:"tf"`
	Gene     string  `csv:"gene"`
	R        float64 `csv:"r"`
	P        float64 `csv:"p"`
	FDR      float64 `csv:"fdr"`
	PeakTime float64 `csv:"peak_pseudotime"`
}

// PeakGeneCor records one peak tested against one nearby gene.
type PeakGeneCor struct {
	Peak        string  `csv:"peak"`
	Gene        string  `csv:"gene"`
	R           float64 `csv:"r"`
	P           float64 `csv:"p"`
	FDR         float64 `csv:"fdr"`
	PeakTime    float64 `csv:"peak_pseudotime"`
	DistanceTSS int     `csv:"distance_tss"`
}

func writeTSV(w io.Writer, records interface{}) error {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		cw := csv.NewWriter(out)
		cw.Comma = '\t'
		return gocsv.NewSafeCSVWriter(cw)
	})

	return pfx.Err(gocsv.Marshal(records, w))
}

func readTSV(fileBytes []byte, records interface{}) error {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = '\t'
		return r
	})

	return pfx.Err(gocsv.UnmarshalBytes(fileBytes, records))
}

func WriteTFGeneCors(w io.Writer, records []TFGeneCor) error {
	return writeTSV(w, records)
}

func ReadTFGeneCors(fileBytes []byte) ([]TFGeneCor, error) {
	out := []*TFGeneCor{}
	if err := readTSV(fileBytes, &out); err != nil {
		return nil, err
	}

	records := make([]TFGeneCor, 0, len(out))
	for _, rec := range out {
		records = append(records, *rec)
	}

	return records, nil
}

func WritePeakGeneCors(w io.Writer, records []PeakGeneCor) error {
	return writeTSV(w, records)
}

func ReadPeakGeneCors(fileBytes []byte) ([]PeakGeneCor, error) {
	out := []*PeakGeneCor{}
	if err := readTSV(fileBytes, &out); err != nil {
		return nil, err
	}

	records := make([]PeakGeneCor, 0, len(out))
	for _, rec := range out {
		records = append(records, *rec)
	}

	return records, nil
}
