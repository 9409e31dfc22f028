package render

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

const (
	chartWidth  = "1200px"
	chartHeight = "500px"
	barColor    = "#c23531"
)

// DepthChart writes an HTML page with a bar chart of how many nodes sit at
// each depth of the tree.
func DepthChart[T any](w io.Writer, tree *rbtree.Tree[T], title string) error {
	bar := NewDepthChart(tree.Depths(), title)

	err := bar.Render(w)
	if err != nil {
		return fmt.Errorf("render depth chart: %w", err)
	}

	return nil
}

// NewDepthChart builds the bar chart for a depth histogram.
func NewDepthChart(depths map[int]int, title string) *charts.Bar {
	bar := charts.NewBar()

	subtitle := "Nodes per depth, root at 0"
	if len(depths) == 0 {
		subtitle = "No data"
	}

	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle, Left: "center"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Depth"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Nodes"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	levels := slices.Sorted(maps.Keys(depths))
	labels := make([]string, len(levels))
	data := make([]opts.BarData, len(levels))

	for idx, depth := range levels {
		labels[idx] = strconv.Itoa(depth)
		data[idx] = opts.BarData{Value: depths[depth]}
	}

	bar.SetXAxis(labels).AddSeries("Nodes", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: barColor}))

	return bar
}
