package scmatrix

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/cardiogenomics/fibronet"
)

// ReadNames parses a features.tsv / barcodes.tsv style file: one entry per
// line. When a line carries multiple tab-delimited fields (10x features files
// are id, symbol, type), the second field is preferred since downstream work
// is keyed on symbols.
func ReadNames(r io.Reader) ([]string, error) {
	out := make([]string, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) >= 2 {
			out = append(out, fields[1])
		} else {
			out = append(out, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

// ReadMatrixMarket parses a %%MatrixMarket coordinate-format sparse matrix
// (the 10x mtx layout: 1-based row col value triplets after a rows/cols/nnz
// size line) into a dense Matrix. Feature and barcode names come from the
// sidecar files and must agree with the declared dimensions.
func ReadMatrixMarket(r io.Reader, features, barcodes []string) (*Matrix, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var m *Matrix
	sawSize := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}

		fields := strings.Fields(line)

		if !sawSize {
			if len(fields) != 3 {
				return nil, pfx.Err(fmt.Errorf("scmatrix: malformed MatrixMarket size line %q", line))
			}

			nRows, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, pfx.Err(err)
			}
			nCols, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, pfx.Err(err)
			}

			if nRows != len(features) {
				return nil, pfx.Err(fmt.Errorf("scmatrix: matrix declares %d rows but %d feature names were provided", nRows, len(features)))
			}
			if nCols != len(barcodes) {
				return nil, pfx.Err(fmt.Errorf("scmatrix: matrix declares %d columns but %d barcodes were provided", nCols, len(barcodes)))
			}

			m, err = New(features, barcodes, make([]float64, nRows*nCols))
			if err != nil {
				return nil, err
			}

			sawSize = true
			continue
		}

		if len(fields) != 3 {
			return nil, pfx.Err(fmt.Errorf("scmatrix: malformed MatrixMarket entry %q", line))
		}

		row, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, pfx.Err(err)
		}
		col, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, pfx.Err(err)
		}
		val, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, pfx.Err(err)
		}

		if row < 1 || row > len(features) || col < 1 || col > len(barcodes) {
			return nil, pfx.Err(fmt.Errorf("scmatrix: entry (%d,%d) outside declared %dx%d dimensions", row, col, len(features), len(barcodes)))
		}

		m.Set(row-1, col-1, val)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	if !sawSize {
		return nil, pfx.Err(fmt.Errorf("scmatrix: no MatrixMarket size line found"))
	}

	return m, nil
}

// ReadDenseTSV parses a dense matrix with a header row of barcodes and a
// leading feature-name column. The delimiter is sniffed, so comma- and
// tab-delimited exports both load.
func ReadDenseTSV(b []byte) (*Matrix, error) {
	delim := fibronet.DetermineDelimiter(bytes.NewReader(b))

	cr := csv.NewReader(bytes.NewReader(b))
	cr.Comma = delim
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(header) < 2 {
		return nil, pfx.Err(fmt.Errorf("scmatrix: header row has %d fields; need a feature column plus at least one barcode", len(header)))
	}

	// Header may or may not carry a label above the feature column; detect by
	// comparing widths against the first data row later. Assume labelled.
	barcodes := header[1:]

	features := make([]string, 0)
	data := make([]float64, 0)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		if len(rec) != len(barcodes)+1 {
			return nil, pfx.Err(fmt.Errorf("scmatrix: row %q has %d fields, want %d", rec[0], len(rec), len(barcodes)+1))
		}

		features = append(features, rec[0])
		for _, f := range rec[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, pfx.Err(err)
			}
			data = append(data, v)
		}
	}

	return New(features, barcodes, data)
}
