package domain

import "sort"

// Category classifies a task into one of the planner's fixed buckets.
type Category string

const (
	CategoryLearn   Category = "learn"
	CategoryCode    Category = "code"
	CategoryChores  Category = "chores"
	CategoryErrands Category = "errands"
	CategoryOther   Category = "other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLearn, CategoryCode, CategoryChores, CategoryErrands, CategoryOther:
		return true
	}
	return false
}

// Task is a single to-do item scoped to one calendar day.
type Task struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Category    Category `json:"category"`
	Date        string   `json:"date"`
	Completed   bool     `json:"completed"`
	IsImportant bool     `json:"isImportant"`
}

// TaskUpdate is a tagged set of optional field changes applied as a partial
// merge. Nil fields are left untouched.
type TaskUpdate struct {
	Text        *string   `json:"text,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Date        *string   `json:"date,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
	IsImportant *bool     `json:"isImportant,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u TaskUpdate) Empty() bool {
	return u.Text == nil && u.Category == nil && u.Date == nil && u.Completed == nil && u.IsImportant == nil
}

// Apply merges the supplied fields into t.
func (u TaskUpdate) Apply(t *Task) {
	if u.Text != nil {
		t.Text = *u.Text
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Date != nil {
		t.Date = *u.Date
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	if u.IsImportant != nil {
		t.IsImportant = *u.IsImportant
	}
}

// SortTasks orders tasks for display: important tasks surface first, ties
// broken by ascending id so the order is stable across requests.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].IsImportant != tasks[j].IsImportant {
			return tasks[i].IsImportant
		}
		return tasks[i].ID < tasks[j].ID
	})
}
