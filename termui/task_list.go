package termui

import "sort"

func (t *TermUI) RegisterTask(taskName string) *TaskState {
	state := &TaskState{
		name:       taskName,
		lastStatus: "Loading...",
		parent:     t,
		col:        1,
	}
	t.Lock()
	t.tasks = append(t.tasks, state)
	t.Unlock()
	t.sortTasks() // Ensure tasks are sorted

	return state
}

func (t *TermUI) sortTasks() {
	//Sorts tasks alphabetically and redraws the list
	t.Lock()
	sort.SliceStable(t.tasks, func(i, j int) bool {
		return t.tasks[i].name < t.tasks[j].name
	})
	for i := 0; i < len(t.tasks); i++ {
		t.tasks[i].row = i + 1
	}
	tasks := append([]*TaskState{}, t.tasks...)
	t.Unlock()
	for _, task := range tasks {
		task.redraw()
	}
}
