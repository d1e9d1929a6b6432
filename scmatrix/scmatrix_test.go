package scmatrix

import (
	"math"
	"strings"
	"testing"
)

const mtxFixture = `%%MatrixMarket matrix coordinate real general
% exported counts
3 2 4
1 1 5
2 1 1
3 2 2
1 2 7
`

func TestReadMatrixMarket(t *testing.T) {
	features := []string{"POSTN", "FN1", "TCF21"}
	barcodes := []string{"AAAC-1", "GGGT-1"}

	m, err := ReadMatrixMarket(strings.NewReader(mtxFixture), features, barcodes)
	if err != nil {
		t.Fatal(err)
	}

	if r, c := m.Dims(); r != 3 || c != 2 {
		t.Fatalf("got %dx%d, want 3x2", r, c)
	}

	if got := m.At(0, 0); got != 5 {
		t.Errorf("POSTN/AAAC-1 = %v, want 5", got)
	}
	if got := m.At(2, 1); got != 2 {
		t.Errorf("TCF21/GGGT-1 = %v, want 2", got)
	}
	if got := m.At(1, 1); got != 0 {
		t.Errorf("unlisted entry = %v, want 0", got)
	}
}

func TestReadMatrixMarketDimensionMismatch(t *testing.T) {
	_, err := ReadMatrixMarket(strings.NewReader(mtxFixture), []string{"POSTN"}, []string{"AAAC-1", "GGGT-1"})
	if err == nil {
		t.Error("expected an error when feature names disagree with declared rows")
	}
}

func TestReadNamesPrefersSymbolColumn(t *testing.T) {
	names, err := ReadNames(strings.NewReader("ENSG000001\tPOSTN\tGene Expression\nENSG000002\tFN1\tGene Expression\n"))
	if err != nil {
		t.Fatal(err)
	}

	if len(names) != 2 || names[0] != "POSTN" || names[1] != "FN1" {
		t.Errorf("got %v, want [POSTN FN1]", names)
	}
}

func TestReadDenseTSV(t *testing.T) {
	fixture := "gene\tAAAC-1\tGGGT-1\nPOSTN\t1.5\t0\nFN1\t0\t3\n"

	m, err := ReadDenseTSV([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}

	row, err := m.Row("FN1")
	if err != nil {
		t.Fatal(err)
	}
	if row[0] != 0 || row[1] != 3 {
		t.Errorf("FN1 row = %v, want [0 3]", row)
	}
}

func TestCPMLog1p(t *testing.T) {
	m, err := New([]string{"A", "B"}, []string{"c1", "c2"}, []float64{1, 0, 3, 0})
	if err != nil {
		t.Fatal(err)
	}

	m.CPMLog1p()

	// c1 has 4 total counts: A becomes log1p(1/4*1e4), B log1p(3/4*1e4).
	if got, want := m.At(0, 0), math.Log1p(2500); math.Abs(got-want) > 1e-9 {
		t.Errorf("A/c1 = %v, want %v", got, want)
	}

	// c2 has zero counts and must remain zero rather than NaN.
	if got := m.At(0, 1); got != 0 {
		t.Errorf("A/c2 = %v, want 0", got)
	}
}

func TestSubsetCols(t *testing.T) {
	m, err := New([]string{"A", "B"}, []string{"c1", "c2", "c3"}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}

	sub, err := m.SubsetCols([]string{"c3", "c1"})
	if err != nil {
		t.Fatal(err)
	}

	if got := sub.At(0, 0); got != 3 {
		t.Errorf("A/c3 = %v, want 3", got)
	}
	if got := sub.At(1, 1); got != 4 {
		t.Errorf("B/c1 = %v, want 4", got)
	}

	if _, err := m.SubsetCols([]string{"nope"}); err == nil {
		t.Error("expected an error for an unknown barcode")
	}
}

func TestVariableFeatures(t *testing.T) {
	m, err := New(
		[]string{"flat", "spiky"},
		[]string{"c1", "c2", "c3"},
		[]float64{1, 1, 1, 0, 10, 0},
	)
	if err != nil {
		t.Fatal(err)
	}

	top := m.VariableFeatures(1)
	if len(top) != 1 || top[0] != "spiky" {
		t.Errorf("got %v, want [spiky]", top)
	}
}
