// Public domain.

package kbprog

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/soniakeys/meeus/v3/julian"
	sexa "github.com/soniakeys/sexagesimal"

	"github.com/soniakeys/kbpost/internal/pipeline"
	"github.com/soniakeys/kbpost/internal/result"
	"github.com/soniakeys/kbpost/search"
)

const dateFormat = "2006-01-02 15:04:05"

// mjdString formats an MJD as a UTC calendar time.
func mjdString(mjd float64) string {
	return julian.JDToTime(mjd + search.MJDOffset).UTC().Format(dateFormat)
}

// Report writes a table of the final results of set.  When label is not
// nil it supplies an extra column.
func Report(w io.Writer, set *result.Set, sum *pipeline.Summary, label func(search.Trajectory) string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	hdr := table.Row{"#", "x", "y", "vx", "vy", "angle", "lh", "new lh", "epochs", "first", "last"}
	if label != nil {
		hdr = append(hdr, "kind")
	}
	tw.AppendHeader(hdr)
	for n, i := range set.Selected() {
		t := set.Results[i]
		first, last := "", ""
		if tm := set.Times[i]; len(tm) > 0 {
			first, last = mjdString(tm[0]), mjdString(tm[len(tm)-1])
		}
		row := table.Row{
			n,
			fmt.Sprintf("%.1f", t.X),
			fmt.Sprintf("%.1f", t.Y),
			fmt.Sprintf("%.2f", t.VX),
			fmt.Sprintf("%.2f", t.VY),
			fmt.Sprintf("%.1d", sexa.FmtAngle(t.Angle())),
			fmt.Sprintf("%.2f", t.LH),
			fmt.Sprintf("%.2f", set.NewLH[i]),
			len(set.LCIndex[i]),
			first,
			last,
		}
		if label != nil {
			row = append(row, label(t))
		}
		tw.AppendRow(row)
	}
	if sum != nil {
		tw.AppendFooter(table.Row{"", "", "", "", "", "", "",
			"filter", sum.Filter, "final", sum.Final})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	tw.Render()
}

// Summarize writes one line per stage.
func Summarize(w io.Writer, sum *pipeline.Summary) {
	s := sum.Stream
	fmt.Fprintf(w, "streamed %d candidates in %d chunks, %d over max likelihood\n",
		s.Fetched, s.Chunks, s.Skipped)
	fmt.Fprintf(w, "%s filter kept %d of %d\n", sum.Filter, s.Kept, s.Filtered)
	if sum.StampRun {
		fmt.Fprintf(w, "stamp filter kept %d\n", sum.StampKept)
	}
	if sum.ClusterRun {
		fmt.Fprintf(w, "clustering found %d clusters\n", sum.Clusters)
	}
	fmt.Fprintf(w, "%d final results in %s\n", sum.Final, sum.Elapsed.Round(time.Millisecond))
}
