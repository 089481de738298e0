package termui

// TaskState is one row of the status table.
// A nil TaskState is valid and ignores updates, for running without a UI
type TaskState struct {
	name       string
	lastStatus string
	parent     *TermUI
	//Row and col of the status cell, guarded by the parent lock
	row int
	col int
}

func (t *TaskState) UpdateStatus(state string) {
	if t == nil {
		return
	}
	t.parent.Lock()
	t.lastStatus = state
	t.parent.Unlock()
	t.redraw()
}

// redraw draws title and contents again
func (t *TaskState) redraw() {
	t.parent.Lock()
	row, col, name, status := t.row, t.col, t.name, t.lastStatus
	t.parent.Unlock()
	if row == 0 {
		return // not placed yet
	}
	t.parent.update(func() {
		t.parent.statusTable.SetCellSimple(row, col, status)
		t.parent.statusTable.SetCellSimple(row, col-1, name)
	})
}
