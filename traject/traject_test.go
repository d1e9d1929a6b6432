package traject

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/coembed"
)

// lineFixture places ten cells on a line in diffusion space; the first five
// belong to the root cluster.
func lineFixture() (*coembed.Embedding, []cellannot.Cell) {
	var sb strings.Builder
	sb.WriteString("barcode\tDC_1\tDC_2\n")

	cells := make([]cellannot.Cell, 0, 10)
	for i := 0; i < 10; i++ {
		barcode := fmt.Sprintf("cell%d", i)
		fmt.Fprintf(&sb, "%s\t%d\t0\n", barcode, i)

		cluster := "early"
		if i >= 5 {
			cluster = "late"
		}
		cells = append(cells, cellannot.Cell{Barcode: barcode, Modality: cellannot.ModalityRNA, Cluster: cluster})
	}

	emb, err := coembed.ReadEmbedding([]byte(sb.String()))
	if err != nil {
		panic(err)
	}

	return emb, cells
}

func TestFitOrdersAlongDC1(t *testing.T) {
	emb, cells := lineFixture()

	pt, err := Fit(emb, cells, nil, 3)
	if err != nil {
		t.Fatal(err)
	}

	if len(pt) != 10 {
		t.Fatalf("pseudotime for %d cells, want 10", len(pt))
	}

	if pt["cell0"] != 0 || pt["cell9"] != 1 {
		t.Errorf("endpoints = %v, %v; want 0 and 1", pt["cell0"], pt["cell9"])
	}
	for i := 0; i < 9; i++ {
		if pt[fmt.Sprintf("cell%d", i)] >= pt[fmt.Sprintf("cell%d", i+1)] {
			t.Errorf("pseudotime not monotone between cell%d and cell%d", i, i+1)
		}
	}
}

func TestFitRestrictsToClusters(t *testing.T) {
	emb, cells := lineFixture()

	pt, err := Fit(emb, cells, []string{"late"}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(pt) != 5 {
		t.Fatalf("pseudotime for %d cells, want 5", len(pt))
	}
	if _, exists := pt["cell0"]; exists {
		t.Error("cell outside keepClusters received pseudotime")
	}
}

func TestFitNeedsEnoughCells(t *testing.T) {
	emb, cells := lineFixture()
	if _, err := Fit(emb, cells[:1], nil, 2); err == nil {
		t.Error("expected an error for a one-cell trajectory")
	}
}

func TestOrientFlipsWhenRootIsLate(t *testing.T) {
	emb, cells := lineFixture()

	pt, err := Fit(emb, cells, nil, 3)
	if err != nil {
		t.Fatal(err)
	}

	// "late" cells sit at high pseudotime; orienting on them must flip.
	flipped := Orient(pt, cells, "late")
	if flipped["cell9"] != 0 || flipped["cell0"] != 1 {
		t.Errorf("after flip endpoints = %v, %v; want 0 and 1", flipped["cell9"], flipped["cell0"])
	}

	// Orienting on "early" leaves it as-is.
	same := Orient(pt, cells, "early")
	if same["cell0"] != 0 {
		t.Errorf("orientation changed despite root already early: %v", same["cell0"])
	}
}

func TestApplySetsAndClears(t *testing.T) {
	emb, cells := lineFixture()

	pt, err := Fit(emb, cells, []string{"late"}, 2)
	if err != nil {
		t.Fatal(err)
	}

	out := Apply(cells, pt)
	if !out[7].Pseudotime.IsSet() {
		t.Error("trajectory cell missing pseudotime after Apply")
	}
	if out[0].Pseudotime.IsSet() {
		t.Error("off-trajectory cell has pseudotime after Apply")
	}
}
