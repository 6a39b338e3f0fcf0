package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/runway-sync/runway/internal/runway"
)

// printSummary writes the counts of a pass, then a table of failures.
func printSummary(w io.Writer, r *runway.Result) {
	status := green("synced")
	if !r.Clean() {
		status = red("failed")
	}

	fmt.Fprintf(w, "%s %s: %d new, %d modified, %d unchanged, %d synced",
		status, r.Target, r.New, r.Modified, r.Unchanged, r.Synced)
	if n := r.Failed(); n > 0 {
		fmt.Fprintf(w, ", %s", red(fmt.Sprintf("%d failed", n)))
	}
	if r.Skipped > 0 {
		fmt.Fprintf(w, ", %s", yellow(fmt.Sprintf("%d skipped", r.Skipped)))
	}
	if n := r.Removed(); n > 0 {
		fmt.Fprintf(w, ", %s", yellow(fmt.Sprintf("%d no longer resolve", n)))
	}
	fmt.Fprintf(w, " in %s\n", r.Elapsed.Round(time.Millisecond))

	if r.Failed() > 0 {
		rows := make([][]string, 0, r.Failed())
		for _, f := range r.Failures {
			rows = append(rows, []string{f.Ident.String(), f.Err.Error()})
		}
		fmt.Fprintln(w, renderTable([]string{"Asset", "Cause"}, rows))
	}
	if r.Removed() > 0 {
		fmt.Fprintf(w, "run %s to forget assets that no longer resolve\n", cyan("runway prune"))
	}
	if r.CodegenErr != nil {
		fmt.Fprintf(w, "%s %v\n", red("codegen:"), r.CodegenErr)
	} else if r.Generated > 0 {
		fmt.Fprintf(w, "%s %d outputs\n", green("generated"), r.Generated)
	}
}

func renderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, WidthMax: 80},
	})
	return tw.Render()
}
