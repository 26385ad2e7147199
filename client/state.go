package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"weeksync/domain"
)

// API is the subset of Client the state manager depends on.
type API interface {
	ListDay(ctx context.Context, date string) ([]domain.Task, error)
	ListWeek(ctx context.Context, weekStart string) (map[string][]domain.Task, error)
	CreateTask(ctx context.Context, text string, category domain.Category, date string) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error
	DeleteTask(ctx context.Context, id string) error
	Migrate(ctx context.Context, from, to string) (int, error)
}

// Notifier receives user-facing notices about background sync outcomes.
type Notifier interface {
	Info(title, message string)
	Error(title, message string)
}

const (
	viewDay = iota
	viewWeek
)

// State keeps a local copy of tasks and applies mutations optimistically:
// the local copy changes immediately, the API call runs after, and on failure
// the previous state is restored and the notifier is told.
type State struct {
	api      API
	notifier Notifier
	now      func() time.Time

	mu       sync.Mutex
	tasks    []domain.Task
	week     map[string][]domain.Task
	view     int
	viewDate string
	loading  bool
}

func NewState(api API, notifier Notifier) *State {
	return &State{
		api:      api,
		notifier: notifier,
		now:      time.Now,
	}
}

// Tasks returns a copy of the current day-view tasks.
func (s *State) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// WeekTasks returns a copy of the current week-view tasks, keyed by day.
func (s *State) WeekTasks() map[string][]domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]domain.Task, len(s.week))
	for day, tasks := range s.week {
		cp := make([]domain.Task, len(tasks))
		copy(cp, tasks)
		out[day] = cp
	}
	return out
}

func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// FetchDay loads the tasks for one day and switches to the day view.
func (s *State) FetchDay(ctx context.Context, date string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	tasks, err := s.api.ListDay(ctx, date)
	if err != nil {
		s.notifyError("Error", "Failed to load tasks.")
		return err
	}

	s.mu.Lock()
	s.tasks = tasks
	s.view = viewDay
	s.viewDate = date
	s.mu.Unlock()
	return nil
}

// FetchWeek loads a whole week of tasks and switches to the week view.
func (s *State) FetchWeek(ctx context.Context, weekStart string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	week, err := s.api.ListWeek(ctx, weekStart)
	if err != nil {
		s.notifyError("Error", "Failed to load tasks.")
		return err
	}
	if week == nil {
		// Days without tasks are absent from the response; an empty week
		// still needs a map for optimistic inserts to land in.
		week = map[string][]domain.Task{}
	}

	s.mu.Lock()
	s.week = week
	s.view = viewWeek
	s.viewDate = weekStart
	s.mu.Unlock()
	return nil
}

// FetchCurrentWeek loads the Monday-start week containing today.
func (s *State) FetchCurrentWeek(ctx context.Context) error {
	start := domain.StartOfWeek(s.now())
	return s.FetchWeek(ctx, domain.FormatDay(start))
}

// AddTask inserts a placeholder task immediately and swaps it for the server
// version once the create call resolves.
func (s *State) AddTask(ctx context.Context, text string, category domain.Category, date string) bool {
	tempID := "temp-" + uuid.NewString()
	temp := domain.Task{ID: tempID, Text: text, Category: category, Date: date}

	s.mu.Lock()
	snapTasks, snapWeek := s.snapshotLocked()
	s.insertLocked(temp)
	s.mu.Unlock()

	created, err := s.api.CreateTask(ctx, text, category, date)
	if err != nil {
		s.restore(snapTasks, snapWeek)
		s.notifyError("Error", "Failed to save task. Please try again.")
		return false
	}

	s.mu.Lock()
	s.replaceLocked(tempID, created)
	s.mu.Unlock()
	return true
}

// ToggleCompleted flips a task's completed flag.
func (s *State) ToggleCompleted(ctx context.Context, id string) bool {
	task, ok := s.find(id)
	if !ok {
		return false
	}
	next := !task.Completed
	return s.mutate(
		func(t *domain.Task) { t.Completed = next },
		func() error {
			return s.api.UpdateTask(ctx, id, domain.TaskUpdate{Completed: &next})
		},
		id,
	)
}

// ToggleImportant flips a task's important flag.
func (s *State) ToggleImportant(ctx context.Context, id string) bool {
	task, ok := s.find(id)
	if !ok {
		return false
	}
	next := !task.IsImportant
	return s.mutate(
		func(t *domain.Task) { t.IsImportant = next },
		func() error {
			return s.api.UpdateTask(ctx, id, domain.TaskUpdate{IsImportant: &next})
		},
		id,
	)
}

// DeleteTask removes the task locally right away and restores it if the
// delete call fails.
func (s *State) DeleteTask(ctx context.Context, id string) bool {
	s.mu.Lock()
	snapTasks, snapWeek := s.snapshotLocked()
	s.removeLocked(id)
	s.mu.Unlock()

	if err := s.api.DeleteTask(ctx, id); err != nil {
		s.restore(snapTasks, snapWeek)
		s.notifyError("Error", "Failed to delete task. Reverting.")
		return false
	}
	return true
}

// MigrateYesterday moves yesterday's incomplete tasks to today and refreshes
// the current view when anything moved.
func (s *State) MigrateYesterday(ctx context.Context) (int, error) {
	today := s.now()
	from := domain.FormatDay(today.AddDate(0, 0, -1))
	to := domain.FormatDay(today)

	moved, err := s.api.Migrate(ctx, from, to)
	if err != nil {
		s.notifyError("Error", "Failed to migrate tasks.")
		return 0, err
	}
	if moved == 0 {
		s.notifyInfo("Migration", "Nothing to migrate.")
		return 0, nil
	}

	s.refreshView(ctx)
	s.notifyInfo("Migration", "Moved incomplete tasks to today.")
	return moved, nil
}

func (s *State) refreshView(ctx context.Context) {
	s.mu.Lock()
	view, date := s.view, s.viewDate
	s.mu.Unlock()
	if date == "" {
		return
	}
	if view == viewWeek {
		_ = s.FetchWeek(ctx, date)
		return
	}
	_ = s.FetchDay(ctx, date)
}

// mutate applies an edit to the task in both views, runs the API call, and
// rolls the edit back when the call fails.
func (s *State) mutate(apply func(*domain.Task), call func() error, id string) bool {
	s.mu.Lock()
	snapTasks, snapWeek := s.snapshotLocked()
	s.applyLocked(id, apply)
	s.mu.Unlock()

	if err := call(); err != nil {
		s.restore(snapTasks, snapWeek)
		s.notifyError("Error", "Failed to sync task. Reverting.")
		return false
	}
	return true
}

func (s *State) find(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	for _, tasks := range s.week {
		for _, t := range tasks {
			if t.ID == id {
				return t, true
			}
		}
	}
	return domain.Task{}, false
}

func (s *State) snapshotLocked() ([]domain.Task, map[string][]domain.Task) {
	tasks := make([]domain.Task, len(s.tasks))
	copy(tasks, s.tasks)
	week := make(map[string][]domain.Task, len(s.week))
	for day, dayTasks := range s.week {
		cp := make([]domain.Task, len(dayTasks))
		copy(cp, dayTasks)
		week[day] = cp
	}
	return tasks, week
}

func (s *State) restore(tasks []domain.Task, week map[string][]domain.Task) {
	s.mu.Lock()
	s.tasks = tasks
	s.week = week
	s.mu.Unlock()
}

func (s *State) insertLocked(task domain.Task) {
	if s.view == viewDay && task.Date == s.viewDate {
		s.tasks = append(s.tasks, task)
	}
	if s.week != nil {
		s.week[task.Date] = append(s.week[task.Date], task)
	}
}

func (s *State) replaceLocked(id string, task domain.Task) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i] = task
		}
	}
	for day := range s.week {
		for i := range s.week[day] {
			if s.week[day][i].ID == id {
				s.week[day][i] = task
			}
		}
	}
}

func (s *State) removeLocked(id string) {
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	for day, tasks := range s.week {
		keptDay := tasks[:0]
		for _, t := range tasks {
			if t.ID != id {
				keptDay = append(keptDay, t)
			}
		}
		s.week[day] = keptDay
	}
}

func (s *State) applyLocked(id string, apply func(*domain.Task)) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			apply(&s.tasks[i])
		}
	}
	for day := range s.week {
		for i := range s.week[day] {
			if s.week[day][i].ID == id {
				apply(&s.week[day][i])
			}
		}
	}
}

func (s *State) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *State) notifyInfo(title, message string) {
	if s.notifier != nil {
		s.notifier.Info(title, message)
	}
}

func (s *State) notifyError(title, message string) {
	if s.notifier != nil {
		s.notifier.Error(title, message)
	}
}
