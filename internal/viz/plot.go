package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
)

type PlotOptions struct {
	Width  int
	Height int
	// Caption defaults to the plotted names and the time span.
	Caption string
	// Color adds series colors and a legend. Off for plain-text output.
	Color bool
}

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.DodgerBlue,
	asciigraph.Orange,
	asciigraph.LimeGreen,
	asciigraph.Magenta,
	asciigraph.Gold,
	asciigraph.Turquoise,
	asciigraph.Tomato,
	asciigraph.Silver,
}

// PlotSeries charts each named series against time. Adaptive runs record
// states at uneven times, so every series is resampled onto a uniform grid
// of Width points first.
func PlotSeries(times []float64, names []string, series [][]float64, opts PlotOptions) string {
	if len(times) < 2 || len(series) == 0 {
		return ""
	}
	w := opts.Width
	if w <= 0 {
		w = 80
	}
	h := opts.Height
	if h <= 0 {
		h = 12
	}

	data := make([][]float64, len(series))
	for i, s := range series {
		data[i] = Resample(times, s, w)
	}

	caption := opts.Caption
	if caption == "" {
		caption = fmt.Sprintf("%s  t = %g..%g", strings.Join(names, ", "), times[0], times[len(times)-1])
	}

	options := []asciigraph.Option{
		asciigraph.Height(h),
		asciigraph.Width(w),
		asciigraph.Caption(caption),
		asciigraph.Precision(3),
	}
	if opts.Color {
		colors := make([]asciigraph.AnsiColor, len(data))
		for i := range colors {
			colors[i] = seriesColors[i%len(seriesColors)]
		}
		options = append(options, asciigraph.SeriesColors(colors...), asciigraph.SeriesLegends(names...))
	}
	return asciigraph.PlotMany(data, options...)
}

// Resample linearly interpolates values, recorded at times, onto n equally
// spaced instants spanning the same interval.
func Resample(times, values []float64, n int) []float64 {
	if n < 2 || len(times) < 2 || len(values) != len(times) {
		return append([]float64(nil), values...)
	}
	t0, t1 := times[0], times[len(times)-1]
	out := make([]float64, n)
	for i := range out {
		t := t0 + (t1-t0)*float64(i)/float64(n-1)
		j := sort.SearchFloat64s(times, t)
		switch {
		case j == 0:
			out[i] = values[0]
		case j >= len(times):
			out[i] = values[len(values)-1]
		default:
			ta, tb := times[j-1], times[j]
			if tb == ta {
				out[i] = values[j]
				continue
			}
			f := (t - ta) / (tb - ta)
			out[i] = values[j-1] + f*(values[j]-values[j-1])
		}
	}
	return out
}

// Column extracts one state component from every row.
func Column(states [][]float64, idx int) []float64 {
	col := make([]float64, len(states))
	for i, row := range states {
		if idx < len(row) {
			col[i] = row[idx]
		}
	}
	return col
}
