package pairing

import (
	"bytes"
	"testing"

	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/coembed"
)

const embFixture = `barcode	CC_1	CC_2
rna1	0	0
rna2	1	0
atac1	0.1	0
atac2	0.2	0
atac3	50	50
`

func fixtureCells() (emb *coembed.Embedding, rna, atac []cellannot.Cell) {
	emb, err := coembed.ReadEmbedding([]byte(embFixture))
	if err != nil {
		panic(err)
	}

	rna = []cellannot.Cell{
		{Barcode: "rna1", Modality: cellannot.ModalityRNA, Cluster: "fib"},
		{Barcode: "rna2", Modality: cellannot.ModalityRNA, Cluster: "fib"},
	}
	atac = []cellannot.Cell{
		{Barcode: "atac1", Modality: cellannot.ModalityATAC, Cluster: "fib"},
		{Barcode: "atac2", Modality: cellannot.ModalityATAC, Cluster: "fib"},
		{Barcode: "atac3", Modality: cellannot.ModalityATAC, Cluster: "fib"},
	}

	return emb, rna, atac
}

func TestPairCellsUniqueMatching(t *testing.T) {
	emb, rna, atac := fixtureCells()

	pairs, err := PairCells(emb, rna, atac, Options{K: 2})
	if err != nil {
		t.Fatal(err)
	}

	used := make(map[string]string)
	for _, p := range pairs {
		if prev, seen := used[p.RNABarcode]; seen {
			t.Errorf("RNA cell %s reused for %s and %s without AllowReuse", p.RNABarcode, prev, p.ATACBarcode)
		}
		used[p.RNABarcode] = p.ATACBarcode
	}

	// atac1 is nearest to rna1; with unique matching atac2 must settle for rna2.
	byATAC := make(map[string]Pair)
	for _, p := range pairs {
		byATAC[p.ATACBarcode] = p
	}
	if byATAC["atac1"].RNABarcode != "rna1" {
		t.Errorf("atac1 paired with %s, want rna1", byATAC["atac1"].RNABarcode)
	}
	if byATAC["atac2"].RNABarcode != "rna2" {
		t.Errorf("atac2 paired with %s, want rna2", byATAC["atac2"].RNABarcode)
	}
}

func TestPairCellsAllowReuse(t *testing.T) {
	emb, rna, atac := fixtureCells()

	strict, err := PairCells(emb, rna, atac, Options{K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(strict) != 2 {
		t.Errorf("unique matching produced %d pairs, want 2 (atac3 stranded)", len(strict))
	}

	relaxed, err := PairCells(emb, rna, atac, Options{K: 2, AllowReuse: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(relaxed) != 3 {
		t.Errorf("AllowReuse produced %d pairs, want 3", len(relaxed))
	}
}

func TestPairCellsSameClusterConstraint(t *testing.T) {
	emb, rna, atac := fixtureCells()

	// Move every RNA cell out of the ATAC cells' cluster: nothing can pair.
	for i := range rna {
		rna[i].Cluster = "other"
	}

	pairs, err := PairCells(emb, rna, atac, Options{K: 2, SameCluster: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 0 {
		t.Errorf("cluster-constrained pairing produced %d pairs, want 0", len(pairs))
	}
}

func TestPairsRoundTrip(t *testing.T) {
	emb, rna, atac := fixtureCells()

	pairs, err := PairCells(emb, rna, atac, Options{K: 2})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WritePairs(&buf, pairs); err != nil {
		t.Fatal(err)
	}

	again, err := ReadPairs(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(pairs) || again[0].ATACBarcode != pairs[0].ATACBarcode {
		t.Errorf("round trip changed pairs: %+v vs %+v", again, pairs)
	}
}
