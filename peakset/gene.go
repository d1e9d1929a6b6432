package peakset

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

//go:embed lookups/*
var embeddedLookups embed.FS

const embeddedGeneFile = "lookups/grch38.fibroblast.genes"

type Gene struct {
	Symbol     string
	Chrom      string
	TxStart    int
	TxEnd      int
	PlusStrand bool
}

// TSS is the transcription start site, which sits at the transcript end for
// minus-strand genes.
func (g Gene) TSS() int {
	if g.PlusStrand {
		return g.TxStart
	}

	return g.TxEnd
}

// LoadGenes reads the embedded GRCh38 gene span lookup.
func LoadGenes() ([]Gene, error) {
	fileBytes, err := embeddedLookups.ReadFile(embeddedGeneFile)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return ReadGenes(bytes.NewReader(fileBytes))
}

// ReadGenes parses a tab-delimited gene span table: symbol, chromosome,
// tx_start, tx_end, strand. Lines starting with # are comments.
func ReadGenes(r io.Reader) ([]Gene, error) {
	out := make([]Gene, 0)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			return nil, pfx.Err(fmt.Errorf("peakset: gene line %q has %d fields, want 5", line, len(fields)))
		}

		start, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, pfx.Err(err)
		}
		end, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, pfx.Err(err)
		}

		out = append(out, Gene{
			Symbol:     fields[0],
			Chrom:      strings.TrimPrefix(fields[1], "chr"),
			TxStart:    start,
			TxEnd:      end,
			PlusStrand: fields[4] == "+",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

// GeneIndex answers which genes sit near a peak, per chromosome.
type GeneIndex struct {
	byChrom map[string][]Gene
}

func NewGeneIndex(genes []Gene) *GeneIndex {
	idx := &GeneIndex{byChrom: make(map[string][]Gene)}
	for _, g := range genes {
		idx.byChrom[g.Chrom] = append(idx.byChrom[g.Chrom], g)
	}

	for chrom := range idx.byChrom {
		sort.Slice(idx.byChrom[chrom], func(i, j int) bool {
			return idx.byChrom[chrom][i].TxStart < idx.byChrom[chrom][j].TxStart
		})
	}

	return idx
}

// NearbyGenes returns all genes whose TSS is within window bp of the peak
// midpoint. Peaks on chromosomes with no annotated genes return nothing.
func (idx *GeneIndex) NearbyGenes(p Peak, window int) []Gene {
	mid := p.Mid()

	out := make([]Gene, 0)
	for _, g := range idx.byChrom[p.Chrom] {
		if d := mid - g.TSS(); d >= -window && d <= window {
			out = append(out, g)
		}
	}

	return out
}

// Gene looks up a single gene by symbol.
func (idx *GeneIndex) Gene(symbol string) (Gene, bool) {
	for _, genes := range idx.byChrom {
		for _, g := range genes {
			if g.Symbol == symbol {
				return g, true
			}
		}
	}

	return Gene{}, false
}

// DistanceToTSS is the signed distance from the peak midpoint to the gene's
// TSS; 0 when the midpoint falls on the TSS.
func DistanceToTSS(p Peak, g Gene) int {
	return p.Mid() - g.TSS()
}
