package api

import (
	"context"

	"weeksync/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	CreateTask(ctx context.Context, text string, category domain.Category, date string) (domain.Task, error)
	ListDay(ctx context.Context, date string) ([]domain.Task, error)
	ListWeek(ctx context.Context, weekStart string) (map[string][]domain.Task, error)
	UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error
	DeleteTask(ctx context.Context, id string) error
	MigrateTasks(ctx context.Context, from, to string) (int, error)
	Ping(ctx context.Context) error
}

// NotFoundError is returned by Storage for operations addressing a task that
// does not exist.
type NotFoundError interface {
	error
	NotFound()
}

// Suggester produces task suggestions from a free-text prompt.
type Suggester interface {
	Suggest(ctx context.Context, prompt string) ([]string, error)
}
