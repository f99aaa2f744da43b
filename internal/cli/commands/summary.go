package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/typedgql/internal/plugin"
)

// renderSummary prints one row per generated or failed query file followed
// by the totals.
func renderSummary(w io.Writer, report plugin.Report, elapsed time.Duration) {
	if len(report.Artifacts) > 0 || len(report.Stats.Failures) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Source", "Status", "Detail"})
		for _, path := range report.Artifacts {
			t.AppendRow(table.Row{path, "generated", ""})
		}
		for _, f := range report.Stats.Failures {
			t.AppendRow(table.Row{f.Path, "failed", f.Reason})
		}
		t.Render()
	}

	_, _ = fmt.Fprintf(w, "Generated %d, removed %d, failed %d in %s\n",
		report.Stats.Generated, report.Stats.Removed, report.Stats.Failed,
		elapsed.Round(time.Millisecond))
	if report.StartupErr != nil {
		_, _ = fmt.Fprintf(w, "Warning: %v\n", report.StartupErr)
	}
}
