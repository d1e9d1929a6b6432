// Package plots renders the pipeline's diagnostic figures (embedding
// scatters, pseudotime curves) to PNG.
package plots

import (
	"bytes"
	"os"

	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"
)

type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// Scatter renders each named series as dots in a shared coordinate frame,
// e.g. the co-embedding coloured by modality.
func Scatter(filename string, series []Series) error {
	chartSeries := make([]chart.Series, 0, len(series))
	for _, s := range series {
		chartSeries = append(chartSeries, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: s.X,
			YValues: s.Y,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    2,
			},
		})
	}

	graph := chart.Chart{
		Width:  1024,
		Height: 768,
		Series: chartSeries,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return render(graph, filename)
}

// Curves renders one line per named series over a shared X, e.g. smoothed TF
// activity along pseudotime bins.
func Curves(filename string, series []Series) error {
	chartSeries := make([]chart.Series, 0, len(series))
	for _, s := range series {
		chartSeries = append(chartSeries, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: s.X,
			YValues: s.Y,
		})
	}

	graph := chart.Chart{
		Width:  1024,
		Height: 512,
		XAxis: chart.XAxis{
			Name: "pseudotime",
		},
		Series: chartSeries,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return render(graph, filename)
}

func render(graph chart.Chart, filename string) error {
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return pfx.Err(err)
	}

	outFile, err := os.Create(filename)
	if err != nil {
		return pfx.Err(err)
	}
	defer outFile.Close()

	if _, err := buffer.WriteTo(outFile); err != nil {
		return pfx.Err(err)
	}

	return nil
}
