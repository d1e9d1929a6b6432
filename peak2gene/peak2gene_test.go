package peak2gene

import (
	"fmt"
	"testing"

	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/pairing"
	"github.com/cardiogenomics/fibronet/peakset"
	"github.com/cardiogenomics/fibronet/scmatrix"
)

// linkFixture: 30 paired cells on a gradient. One peak near gene A tracks
// A's rising expression; a second peak sits on another chromosome, far from
// everything.
func linkFixture() (atac, rna *scmatrix.Matrix, pairs []pairing.Pair, cells []cellannot.Cell, genes *peakset.GeneIndex) {
	const n = 30

	atacBarcodes := make([]string, n)
	rnaBarcodes := make([]string, n)
	atacVals := make([]float64, 2*n)
	rnaVals := make([]float64, n)

	for i := 0; i < n; i++ {
		atacBarcodes[i] = fmt.Sprintf("a%d", i)
		rnaBarcodes[i] = fmt.Sprintf("r%d", i)

		atacVals[i] = float64(i)        // chr1 peak rises with pseudotime
		atacVals[n+i] = float64(n - i)  // chr9 peak falls
		rnaVals[i] = 3 * float64(i)     // GENEA rises
	}

	var err error
	atac, err = scmatrix.New([]string{"chr1:10000-10500", "chr9:5000-5500"}, atacBarcodes, atacVals)
	if err != nil {
		panic(err)
	}
	rna, err = scmatrix.New([]string{"GENEA"}, rnaBarcodes, rnaVals)
	if err != nil {
		panic(err)
	}

	for i := 0; i < n; i++ {
		pairs = append(pairs, pairing.Pair{ATACBarcode: atacBarcodes[i], RNABarcode: rnaBarcodes[i]})
		cells = append(cells, cellannot.Cell{
			Barcode:    rnaBarcodes[i],
			Modality:   cellannot.ModalityRNA,
			Pseudotime: cellannot.MaybeFloat(float64(i) / float64(n-1)),
		})
	}

	genes = peakset.NewGeneIndex([]peakset.Gene{
		{Symbol: "GENEA", Chrom: "1", TxStart: 15000, TxEnd: 20000, PlusStrand: true},
	})

	return atac, rna, pairs, cells, genes
}

func TestLink(t *testing.T) {
	atac, rna, pairs, cells, genes := linkFixture()

	records, err := Link(atac, rna, pairs, cells, genes, Options{Window: 100_000, NBins: 10})
	if err != nil {
		t.Fatal(err)
	}

	// Only the chr1 peak is near GENEA.
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1: %+v", len(records), records)
	}

	rec := records[0]
	if rec.Peak != "1:10000-10500" || rec.Gene != "GENEA" {
		t.Errorf("unexpected link %+v", rec)
	}
	if rec.R < 0.99 {
		t.Errorf("r = %v, want ~1", rec.R)
	}
	if rec.DistanceTSS != 10250-15000 {
		t.Errorf("DistanceTSS = %d, want %d", rec.DistanceTSS, 10250-15000)
	}
	if rec.PeakTime < 0.9 {
		t.Errorf("peak pseudotime = %v, want near 1 for a rising peak", rec.PeakTime)
	}

	kept := Filter(records, Options{MaxFDR: 1e-4})
	if len(kept) != 1 {
		t.Errorf("Filter kept %d links, want 1", len(kept))
	}
}

func TestLinkWindowExcludesDistantPeaks(t *testing.T) {
	atac, rna, pairs, cells, genes := linkFixture()

	records, err := Link(atac, rna, pairs, cells, genes, Options{Window: 1000, NBins: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("window 1000 should exclude the peak 4750bp from the TSS, got %+v", records)
	}
}

func TestFilterDropsNegativeCorrelations(t *testing.T) {
	atac, rna, pairs, cells, _ := linkFixture()

	// Put the falling chr9 peak next to GENEA so it correlates negatively.
	genes := peakset.NewGeneIndex([]peakset.Gene{
		{Symbol: "GENEA", Chrom: "9", TxStart: 6000, TxEnd: 9000, PlusStrand: true},
	})

	records, err := Link(atac, rna, pairs, cells, genes, Options{Window: 100_000, NBins: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].R > -0.99 {
		t.Fatalf("expected one strongly negative record, got %+v", records)
	}

	if kept := Filter(records, Options{MaxFDR: 0.5}); len(kept) != 0 {
		t.Errorf("negative correlation passed Filter: %+v", kept)
	}
}
