package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// StatsTable writes the shape statistics of a tree as a two-column table.
func StatsTable(w io.Writer, stats rbtree.Stats) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Header = text.FormatDefault

	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Elements", humanize.Comma(int64(stats.Len))},
		{"Height", strconv.Itoa(stats.Height)},
		{"Black height", strconv.Itoa(stats.BlackHeight)},
		{"Rotations", humanize.Comma(int64(stats.Rotations))}, //nolint:gosec // counters stay far below MaxInt64.
		{"Arena slots", humanize.Comma(int64(stats.ArenaSize))},
		{"Arena in use", fmt.Sprintf("%s (%s)", humanize.Comma(int64(stats.ArenaUsed)), occupancy(stats))},
	})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("render stats: %w", err)
	}

	return nil
}

// occupancy is the share of non-reserved slots holding a live node.
func occupancy(stats rbtree.Stats) string {
	slots := stats.ArenaSize - 1
	if slots <= 0 {
		return "0%"
	}

	const percent = 100

	return humanize.FtoaWithDigits(float64(stats.ArenaUsed)*percent/float64(slots), 1) + "%"
}
