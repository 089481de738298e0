package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/ralim/titlecheck/titles"
	"github.com/ralim/titlecheck/updates"
)

// renderReport draws the version report as a table, optionally only the outdated rows
func renderReport(report []updates.Entry, outdatedOnly bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Title ID", "Kind", "Installed", "Latest", "Status", "Path"})

	outdated := 0
	for _, entry := range report {
		if entry.Outdated {
			outdated++
		} else if outdatedOnly {
			continue
		}
		status := "Up to date"
		if entry.Outdated {
			status = "Update available"
		}
		tw.AppendRow(table.Row{
			entry.TitleID.String(),
			entry.Kind,
			titles.FormatVersionHuman(entry.Available),
			titles.FormatVersionHuman(entry.Latest),
			status,
			entry.Path,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d of %d outdated", outdated, len(report)), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}
