package grn

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/cardiogenomics/fibronet/cellannot"
	"github.com/cardiogenomics/fibronet/correlate"
	"github.com/cardiogenomics/fibronet/scmatrix"
)

// assemblyFixture builds the three evidence streams around one TF (RUNX1)
// and two candidate targets. POSTN has a linked peak carrying the RUNX1
// motif and co-varying expression; DCN's linked peak lacks the motif.
func assemblyFixture() (tfs []correlate.TFGeneCor, links []correlate.PeakGeneCor, hits, rna *scmatrix.Matrix, cells []cellannot.Cell) {
	const n = 30

	tfs = []correlate.TFGeneCor{
		{TF: "MA0511.2_RUNX1", Gene: "RUNX1", R: 0.95, FDR: 1e-8, PeakTime: 0.9},
	}

	links = []correlate.PeakGeneCor{
		{Peak: "13:37560000-37560500", Gene: "POSTN", R: 0.9, FDR: 1e-7},
		{Peak: "12:91150000-91150500", Gene: "DCN", R: 0.8, FDR: 1e-6},
	}

	var err error
	hits, err = scmatrix.New(
		[]string{"MA0511.2_RUNX1"},
		[]string{"chr13:37560000-37560500", "chr12:91150000-91150500"},
		[]float64{1, 0}, // motif present only in the POSTN peak
	)
	if err != nil {
		panic(err)
	}

	barcodes := make([]string, n)
	vals := make([]float64, 3*n)
	for i := 0; i < n; i++ {
		barcodes[i] = fmt.Sprintf("r%d", i)
		vals[i] = float64(i)       // RUNX1 rises
		vals[n+i] = 2 * float64(i) // POSTN rises with it
		vals[2*n+i] = 4.0          // DCN flat
	}
	rna, err = scmatrix.New([]string{"RUNX1", "POSTN", "DCN"}, barcodes, vals)
	if err != nil {
		panic(err)
	}

	for i := 0; i < n; i++ {
		cells = append(cells, cellannot.Cell{
			Barcode:    barcodes[i],
			Modality:   cellannot.ModalityRNA,
			Pseudotime: cellannot.MaybeFloat(float64(i) / float64(n-1)),
		})
	}

	return tfs, links, hits, rna, cells
}

func TestAssembleRequiresAllEvidence(t *testing.T) {
	tfs, links, hits, rna, cells := assemblyFixture()

	edges, err := Assemble(tfs, links, hits, rna, cells, Options{NBins: 10})
	if err != nil {
		t.Fatal(err)
	}

	// DCN's peak lacks the motif, so only RUNX1 -> POSTN survives.
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1: %+v", len(edges), edges)
	}

	e := edges[0]
	if e.TF != "RUNX1" || e.Gene != "POSTN" {
		t.Errorf("edge = %+v, want RUNX1 -> POSTN", e)
	}
	if e.ExprR < 0.99 {
		t.Errorf("expression r = %v, want ~1", e.ExprR)
	}
	if e.BestLinkR != 0.9 || e.Peak != "13:37560000-37560500" {
		t.Errorf("supporting link = %v via %s", e.BestLinkR, e.Peak)
	}
	if e.Importance <= 0.8 || e.Importance > 0.95 {
		t.Errorf("importance = %v, want r * bestLink ~ 0.9", e.Importance)
	}
}

func TestAssembleMinExprR(t *testing.T) {
	tfs, links, hits, rna, cells := assemblyFixture()

	edges, err := Assemble(tfs, links, hits, rna, cells, Options{NBins: 10, MinExprR: 0.999999})
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("MinExprR above attainable correlation still produced edges: %+v", edges)
	}
}

func TestAssignModules(t *testing.T) {
	edges := []Edge{
		{TF: "A", Gene: "x"},
		{TF: "A", Gene: "y"},
		{TF: "B", Gene: "z"},
	}

	assignModules(edges)

	if edges[0].Module != edges[1].Module {
		t.Errorf("edges sharing TF A landed in modules %d and %d", edges[0].Module, edges[1].Module)
	}
	if edges[0].Module == edges[2].Module {
		t.Error("disconnected subgraphs share a module")
	}
}

func TestSummarize(t *testing.T) {
	edges := []Edge{
		{TF: "A", Gene: "x"},
		{TF: "A", Gene: "y"},
		{TF: "B", Gene: "y"},
	}

	s, err := Summarize(edges)
	if err != nil {
		t.Fatal(err)
	}

	if s.TFs != 2 || s.Targets != 2 || s.Edges != 3 {
		t.Errorf("summary = %+v", s)
	}
	if s.MaxOutTF != "A" || s.MaxOutSize != 2 {
		t.Errorf("max out-degree = %s/%d, want A/2", s.MaxOutTF, s.MaxOutSize)
	}
	if s.MeanOut != 1.5 {
		t.Errorf("mean out-degree = %v, want 1.5", s.MeanOut)
	}
}

func TestWriteDOT(t *testing.T) {
	edges := []Edge{{TF: "RUNX1", Gene: "POSTN", Importance: 0.8}}

	var buf bytes.Buffer
	if err := WriteDOT(&buf, edges); err != nil {
		t.Fatal(err)
	}

	dot := buf.String()
	for _, want := range []string{"digraph grn", `"RUNX1" [shape=box]`, `"POSTN" [shape=ellipse]`, `"RUNX1" -> "POSTN"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}

func TestEdgesRoundTrip(t *testing.T) {
	edges := []Edge{{TF: "RUNX1", Gene: "POSTN", Importance: 0.8, ExprR: 0.9, BestLinkR: 0.89, Peak: "13:1-2", Module: 0}}

	var buf bytes.Buffer
	if err := WriteEdges(&buf, edges); err != nil {
		t.Fatal(err)
	}

	again, err := ReadEdges(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 || again[0] != edges[0] {
		t.Errorf("round trip changed edges: %+v", again)
	}
}
