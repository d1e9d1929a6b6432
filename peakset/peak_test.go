package peakset

import (
	"strings"
	"testing"
)

func TestParsePeak(t *testing.T) {
	tests := []struct {
		in    string
		chrom string
		start int
		end   int
		fails bool
	}{
		{in: "chr1:100-200", chrom: "1", start: 100, end: 200},
		{in: "1-100-200", chrom: "1", start: 100, end: 200},
		{in: "chrX_5000_5750", chrom: "X", start: 5000, end: 5750},
		{in: "chr1:200-100", fails: true},
		{in: "chr1:abc-200", fails: true},
		{in: "chr1", fails: true},
	}

	for _, test := range tests {
		p, err := ParsePeak(test.in)
		if test.fails {
			if err == nil {
				t.Errorf("%s: expected an error", test.in)
			}
			continue
		}

		if err != nil {
			t.Errorf("%s: %v", test.in, err)
			continue
		}
		if p.Chrom != test.chrom || p.Start != test.start || p.End != test.end {
			t.Errorf("%s parsed as %+v", test.in, p)
		}
	}
}

func TestTSSRespectsStrand(t *testing.T) {
	plus := Gene{Symbol: "POSTN", Chrom: "13", TxStart: 100, TxEnd: 500, PlusStrand: true}
	minus := Gene{Symbol: "FN1", Chrom: "2", TxStart: 100, TxEnd: 500, PlusStrand: false}

	if plus.TSS() != 100 {
		t.Errorf("plus-strand TSS = %d, want 100", plus.TSS())
	}
	if minus.TSS() != 500 {
		t.Errorf("minus-strand TSS = %d, want 500", minus.TSS())
	}
}

func TestNearbyGenes(t *testing.T) {
	idx := NewGeneIndex([]Gene{
		{Symbol: "A", Chrom: "1", TxStart: 1000, TxEnd: 2000, PlusStrand: true},
		{Symbol: "B", Chrom: "1", TxStart: 90000, TxEnd: 95000, PlusStrand: true},
		{Symbol: "C", Chrom: "2", TxStart: 1000, TxEnd: 2000, PlusStrand: true},
	})

	peak := Peak{Chrom: "1", Start: 500, End: 1500} // midpoint 1000

	got := idx.NearbyGenes(peak, 5000)
	if len(got) != 1 || got[0].Symbol != "A" {
		t.Errorf("NearbyGenes = %+v, want only A", got)
	}

	// Unplaced contig: no genes, no error.
	if got := idx.NearbyGenes(Peak{Chrom: "GL000194.1", Start: 1, End: 100}, 1e6); len(got) != 0 {
		t.Errorf("expected no genes on unplaced contig, got %+v", got)
	}
}

func TestLoadGenes(t *testing.T) {
	genes, err := LoadGenes()
	if err != nil {
		t.Fatal(err)
	}
	if len(genes) < 50 {
		t.Errorf("embedded lookup has %d genes; expected the full tutorial set", len(genes))
	}

	idx := NewGeneIndex(genes)
	postn, ok := idx.Gene("POSTN")
	if !ok || postn.Chrom != "13" || !postn.PlusStrand {
		t.Errorf("POSTN lookup returned %+v, %v", postn, ok)
	}
}

func TestReadGenesRejectsMalformed(t *testing.T) {
	_, err := ReadGenes(strings.NewReader("POSTN\t13\t100\n"))
	if err == nil {
		t.Error("expected an error for a truncated gene line")
	}
}
