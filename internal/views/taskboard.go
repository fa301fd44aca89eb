// ABOUTME: Ops board Kanban view over the session's task list.
// ABOUTME: Tasks move freely between columns; every mutation requires edit permission.

package views

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jfeddern/OpsDeck/internal/types"
)

var columnTitles = map[types.TaskStatus]string{
	types.StatusBacklog:    "Backlog",
	types.StatusInProgress: "In Execution",
	types.StatusReview:     "Security Audit",
	types.StatusDone:       "Resolved",
}

// Column is one Kanban column
type Column struct {
	Status types.TaskStatus `json:"status"`
	Title  string           `json:"title"`
	Tasks  []types.Task     `json:"tasks"`
}

// BoardBody is the task board page payload
type BoardBody struct {
	Columns  []Column           `json:"columns"`
	Statuses []types.TaskStatus `json:"statuses"`
}

// TaskBoard is the ops board view
type TaskBoard struct {
	deps Deps

	mu       sync.Mutex
	editable bool
	tasks    []types.Task
}

func NewTaskBoard(deps Deps) *TaskBoard {
	return &TaskBoard{
		deps:  deps.withDefaults(),
		tasks: seedTasks(),
	}
}

func (b *TaskBoard) Mount(editable bool) { b.SetEditable(editable) }

func (b *TaskBoard) SetEditable(editable bool) {
	b.mu.Lock()
	b.editable = editable
	b.mu.Unlock()
}

func (b *TaskBoard) Unmount() { b.SetEditable(false) }

// Create adds a task to the backlog
func (b *TaskBoard) Create(title, description string, priority types.Priority) (types.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.editable {
		return types.Task{}, ErrReadOnly
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Task{}, fmt.Errorf("task title: %w", ErrEmptyInput)
	}
	if _, ok := types.ParsePriority(string(priority)); !ok {
		return types.Task{}, fmt.Errorf("priority %q: %w", priority, ErrInvalidArgument)
	}

	task := types.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(description),
		Priority:    priority,
		Status:      types.StatusBacklog,
	}
	b.tasks = append(b.tasks, task)
	return task, nil
}

// Move places a task in any column
func (b *TaskBoard) Move(id string, status types.TaskStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.editable {
		return ErrReadOnly
	}
	if _, ok := types.ParseTaskStatus(string(status)); !ok {
		return fmt.Errorf("status %q: %w", status, ErrInvalidArgument)
	}
	i := b.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	b.tasks[i].Status = status
	return nil
}

// Delete removes a task
func (b *TaskBoard) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.editable {
		return ErrReadOnly
	}
	i := b.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
	return nil
}

func (b *TaskBoard) indexLocked(id string) int {
	for i, t := range b.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Tasks returns a copy of every task
func (b *TaskBoard) Tasks() []types.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Task(nil), b.tasks...)
}

func (b *TaskBoard) Render() Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	body := BoardBody{Statuses: types.Statuses()}
	for _, status := range types.Statuses() {
		col := Column{Status: status, Title: columnTitles[status], Tasks: []types.Task{}}
		for _, t := range b.tasks {
			if t.Status == status {
				col.Tasks = append(col.Tasks, t)
			}
		}
		body.Columns = append(body.Columns, col)
	}

	page := Page{
		Kind:     KindBoard,
		Title:    "Ops Workflow",
		Subtitle: "Monitoring internal task lifecycle and research sprints.",
		Editable: b.editable,
		Body:     body,
	}
	if !b.editable {
		page.Banner = "Read Only Buffer"
	}
	return page
}
