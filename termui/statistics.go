package termui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Tracks library statistics
// Used to show an info panel at the bottom of the screen

type Statistics struct {
	TotalTitles   int
	TotalUpdates  int
	TotalDLC      int
	TotalOutdated int
	ManifestSize  int
}

type statisticsView struct {
	table *tview.Table
}

func newStatisticsView() *statisticsView {
	s := &statisticsView{table: tview.NewTable()}
	s.table.SetBorders(true)
	s.table.SetTitle("Statistics")
	s.table.SetFixed(0, 1)
	s.fill(Statistics{})
	return s
}

func (s *statisticsView) fill(stats Statistics) {
	rows := []struct {
		name  string
		value int
	}{
		{"Total Titles", stats.TotalTitles},
		{"Total Updates", stats.TotalUpdates},
		{"Total DLC", stats.TotalDLC},
		{"Outdated", stats.TotalOutdated},
		{"Manifest Titles", stats.ManifestSize},
	}
	for i, row := range rows {
		s.table.SetCellSimple(i, 0, row.name)
		s.table.SetCellSimple(i, 1, fmt.Sprintf("%d", row.value))
	}
}

func (t *TermUI) UpdateStatistics(stats Statistics) {
	t.update(func() {
		t.statistics.fill(stats)
	})
}
