// Package peakset handles ATAC peak coordinates and their relationship to
// gene transcription start sites.
package peakset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

type Peak struct {
	Chrom string
	Start int
	End   int
}

// ParsePeak accepts the common peak-name encodings: chr1:100-200,
// chr1-100-200, and chr1_100_200. The chr prefix is normalized away.
func ParsePeak(s string) (Peak, error) {
	var fields []string

	switch {
	case strings.Contains(s, ":"):
		chromRest := strings.SplitN(s, ":", 2)
		fields = append([]string{chromRest[0]}, strings.SplitN(chromRest[1], "-", 2)...)
	case strings.Contains(s, "_"):
		fields = strings.Split(s, "_")
	default:
		fields = strings.SplitN(s, "-", 3)
	}

	if len(fields) != 3 {
		return Peak{}, pfx.Err(fmt.Errorf("peakset: cannot parse %q into chrom, start, end", s))
	}

	start, err := strconv.Atoi(fields[1])
	if err != nil {
		return Peak{}, pfx.Err(fmt.Errorf("peakset: bad start in %q: %w", s, err))
	}
	end, err := strconv.Atoi(fields[2])
	if err != nil {
		return Peak{}, pfx.Err(fmt.Errorf("peakset: bad end in %q: %w", s, err))
	}

	if start >= end {
		return Peak{}, pfx.Err(fmt.Errorf("peakset: peak %q has start >= end", s))
	}

	return Peak{
		Chrom: strings.TrimPrefix(fields[0], "chr"),
		Start: start,
		End:   end,
	}, nil
}

func (p Peak) Mid() int {
	return (p.Start + p.End) / 2
}

func (p Peak) String() string {
	return fmt.Sprintf("%s:%d-%d", p.Chrom, p.Start, p.End)
}

// ParsePeaks parses a list of peak names, preserving order.
func ParsePeaks(names []string) ([]Peak, error) {
	out := make([]Peak, 0, len(names))
	for _, name := range names {
		p, err := ParsePeak(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, nil
}
