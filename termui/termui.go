package termui

import (
	"sync"

	"github.com/rivo/tview"
)

// TermUI is the wrapper for the basic terminal interface provided
// It shows the logs redirected to the side, along with the program status and outdated titles

type TermUI struct {
	sync.Mutex
	app     *tview.Application
	running bool

	//Logger points to this
	LogsView *tview.TextView

	statusTable   *tview.Table
	tasks         []*TaskState
	statistics    *statisticsView
	outdatedTable *tview.Table
}

func NewTermUI() *TermUI {

	t := &TermUI{
		tasks: []*TaskState{},
		app:   tview.NewApplication(),
	}

	//Logs stream

	t.LogsView = tview.NewTextView()
	t.LogsView.SetText("Loading...\n")
	t.LogsView.SetTextAlign(tview.AlignLeft)
	t.LogsView.SetDynamicColors(true)
	t.LogsView.SetChangedFunc(func() {
		t.app.Draw()
	})
	t.LogsView.SetMaxLines(4096)
	t.LogsView.SetWrap(false)
	t.LogsView.SetTitle("Logs")
	t.LogsView.SetBorder(true)

	//Status table

	t.statusTable = tview.NewTable()
	t.statusTable.SetBorders(true)
	t.statusTable.SetTitle("Status")
	t.statusTable.SetFixed(1, 1)
	t.statusTable.SetCellSimple(0, 0, "Task")
	t.statusTable.SetCellSimple(0, 1, "Status")

	t.statistics = newStatisticsView()
	t.outdatedTable = newOutdatedTable()

	// Grid

	grid := tview.NewGrid()
	grid.SetRows(-1, 9)
	grid.SetColumns(-1, -1)
	grid.SetBorders(true)

	// Grid contents

	grid.AddItem(t.outdatedTable, 0, 0, 1, 1, 0, 0, true)
	grid.AddItem(t.LogsView, 0, 1, 1, 1, 0, 0, false)
	grid.AddItem(t.statusTable, 1, 0, 1, 1, 0, 0, false)
	grid.AddItem(t.statistics.table, 1, 1, 1, 1, 0, 0, false)

	t.app.SetRoot(grid, true)
	t.app.SetFocus(t.outdatedTable)
	return t
}

// Run blocks until the user quits the UI
func (t *TermUI) Run() error {
	t.Lock()
	t.running = true
	t.Unlock()
	err := t.app.Run()
	t.Lock()
	t.running = false
	t.Unlock()
	return err
}

func (t *TermUI) Stop() {
	t.app.Stop()
}

// update applies a widget change, via the draw queue once the app is running
func (t *TermUI) update(change func()) {
	t.Lock()
	if !t.running {
		change()
		t.Unlock()
		return
	}
	t.Unlock()
	t.app.QueueUpdateDraw(change)
}
