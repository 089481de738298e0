package termui

import (
	"fmt"

	"github.com/ralim/titlecheck/updates"
	"github.com/rivo/tview"
)

var outdatedHeaders = []string{"Title ID", "Type", "Available Version", "Latest Version"}

func newOutdatedTable() *tview.Table {
	table := tview.NewTable()
	table.SetBorders(false)
	table.SetTitle("Outdated Titles")
	table.SetBorder(true)
	table.SetFixed(1, 0)
	table.SetSelectable(true, false)
	writeOutdatedHeader(table)
	return table
}

func writeOutdatedHeader(table *tview.Table) {
	for col, header := range outdatedHeaders {
		table.SetCell(0, col, tview.NewTableCell(header).SetSelectable(false).SetExpansion(1))
	}
}

// ShowOutdated replaces the outdated titles list with the outdated rows of the report
func (t *TermUI) ShowOutdated(report []updates.Entry) {
	t.update(func() {
		t.outdatedTable.Clear()
		writeOutdatedHeader(t.outdatedTable)
		row := 1
		for _, entry := range report {
			if !entry.Outdated {
				continue
			}
			t.outdatedTable.SetCellSimple(row, 0, entry.TitleID.String())
			t.outdatedTable.SetCellSimple(row, 1, entry.Kind)
			t.outdatedTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", entry.Available)).SetAlign(tview.AlignRight))
			t.outdatedTable.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", entry.Latest)).SetAlign(tview.AlignRight))
			row++
		}
	})
}
