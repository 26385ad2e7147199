package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"weeksync/domain"
)

// All tasks live in a single partition; RowKey is the task id so update and
// delete are point operations.
const taskPartition = "tasks"

// TaskNotFoundError reports an operation addressing a task id that does not exist.
type TaskNotFoundError struct {
	ID string
}

func (e TaskNotFoundError) Error() string { return "task not found: " + e.ID }

// NotFound marks the error for the API layer's status mapping.
func (e TaskNotFoundError) NotFound() {}

// Storage provides access to the task collection.
type Storage struct {
	taskTable *aztables.Client
	events    *eventPublisher
}

// New creates a Storage instance from the given connection string. When
// eventsQueue is non-empty, task change events are published there best effort.
func New(connStr, tasksTable, eventsQueue string, logger *log.Logger) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	s := &Storage{taskTable: svc.NewClient(tasksTable)}

	if eventsQueue != "" {
		queueClientOptions := azqueue.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries:    5,
					TryTimeout:    time.Minute * 5,
					RetryDelay:    time.Second * 1,
					MaxRetryDelay: time.Second * 60,
					StatusCodes:   []int{408, 429, 500, 502, 503, 504},
				},
			},
		}
		eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
		if err != nil {
			return nil, err
		}
		s.events = newEventPublisher(eq, logger, defaultEventBuffer, defaultEventWorkers)
	}
	return s, nil
}

// Close stops the change-feed publisher, waiting for buffered events to drain.
func (s *Storage) Close() {
	if s.events != nil {
		s.events.Close()
	}
}

type taskEntity struct {
	aztables.Entity
	Text        string `json:"Text"`
	Category    string `json:"Category"`
	Date        string `json:"Date"`
	Completed   bool   `json:"Completed"`
	IsImportant bool   `json:"IsImportant"`
}

func encodeTaskEntity(t domain.Task) ([]byte, error) {
	return json.Marshal(taskEntity{
		Entity:      aztables.Entity{PartitionKey: taskPartition, RowKey: t.ID},
		Text:        t.Text,
		Category:    string(t.Category),
		Date:        t.Date,
		Completed:   t.Completed,
		IsImportant: t.IsImportant,
	})
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          ent.RowKey,
		Text:        ent.Text,
		Category:    domain.Category(ent.Category),
		Date:        ent.Date,
		Completed:   ent.Completed,
		IsImportant: ent.IsImportant,
	}, nil
}

func dayFilter(date string) string {
	return fmt.Sprintf("PartitionKey eq '%s' and Date eq '%s'", taskPartition, date)
}

func rangeFilter(from, to string) string {
	return fmt.Sprintf("PartitionKey eq '%s' and Date ge '%s' and Date le '%s'", taskPartition, from, to)
}

func migrateFilter(date string) string {
	return fmt.Sprintf("PartitionKey eq '%s' and Date eq '%s' and Completed eq false", taskPartition, date)
}

func (s *Storage) queryTasks(ctx context.Context, filter string) ([]domain.Task, error) {
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			task, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// CreateTask persists a new task for the given day. The store assigns the id;
// new tasks always start incomplete and unflagged.
func (s *Storage) CreateTask(ctx context.Context, text string, category domain.Category, date string) (domain.Task, error) {
	task := domain.Task{
		ID:       uuid.NewString(),
		Text:     text,
		Category: category,
		Date:     date,
	}
	data, err := encodeTaskEntity(task)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, data, nil); err != nil {
		return domain.Task{}, err
	}
	s.publish(TaskEvent{Type: EventTaskCreated, TaskID: task.ID, Date: task.Date})
	return task, nil
}

// ListDay retrieves all tasks for the given day, important tasks first.
func (s *Storage) ListDay(ctx context.Context, date string) ([]domain.Task, error) {
	tasks, err := s.queryTasks(ctx, dayFilter(date))
	if err != nil {
		return nil, err
	}
	domain.SortTasks(tasks)
	return tasks, nil
}

// ListWeek retrieves tasks in the 7-day window beginning at weekStart, grouped
// by day. Days without tasks are absent from the result.
func (s *Storage) ListWeek(ctx context.Context, weekStart string) (map[string][]domain.Task, error) {
	from, to, err := domain.WeekWindow(weekStart)
	if err != nil {
		return nil, err
	}
	tasks, err := s.queryTasks(ctx, rangeFilter(from, to))
	if err != nil {
		return nil, err
	}
	byDay := make(map[string][]domain.Task)
	for _, task := range tasks {
		byDay[task.Date] = append(byDay[task.Date], task)
	}
	for day := range byDay {
		domain.SortTasks(byDay[day])
	}
	return byDay, nil
}

// UpdateTask applies a partial merge to the stored task.
func (s *Storage) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error {
	resp, err := s.taskTable.GetEntity(ctx, taskPartition, id, nil)
	if err != nil {
		return notFoundOr(err, id)
	}
	task, err := decodeTaskEntity(resp.Value)
	if err != nil {
		return err
	}
	upd.Apply(&task)
	data, err := encodeTaskEntity(task)
	if err != nil {
		return err
	}
	if _, err := s.taskTable.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return notFoundOr(err, id)
	}
	s.publish(TaskEvent{Type: EventTaskUpdated, TaskID: id, Date: task.Date})
	return nil
}

// DeleteTask removes the task from the collection.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	resp, err := s.taskTable.GetEntity(ctx, taskPartition, id, nil)
	if err != nil {
		return notFoundOr(err, id)
	}
	task, err := decodeTaskEntity(resp.Value)
	if err != nil {
		return err
	}
	if _, err := s.taskTable.DeleteEntity(ctx, taskPartition, id, nil); err != nil {
		return notFoundOr(err, id)
	}
	s.publish(TaskEvent{Type: EventTaskDeleted, TaskID: id, Date: task.Date})
	return nil
}

// MigrateTasks moves every incomplete task dated from onto to and returns the
// number of tasks moved. Completed tasks never migrate. The date is merged on
// the existing entity, so a task is moved, never copied or dropped. Running the
// migration twice moves zero tasks the second time.
func (s *Storage) MigrateTasks(ctx context.Context, from, to string) (int, error) {
	tasks, err := s.queryTasks(ctx, migrateFilter(from))
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, task := range tasks {
		task.Date = to
		data, err := encodeTaskEntity(task)
		if err != nil {
			return moved, err
		}
		if _, err := s.taskTable.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
			return moved, err
		}
		moved++
		s.publish(TaskEvent{Type: EventTaskMigrated, TaskID: task.ID, Date: from, ToDate: to})
	}
	return moved, nil
}

// Ping probes table connectivity for the health endpoint.
func (s *Storage) Ping(ctx context.Context) error {
	top := int32(1)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Top: &top})
	if pager.More() {
		if _, err := pager.NextPage(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) publish(ev TaskEvent) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

func notFoundOr(err error, id string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return TaskNotFoundError{ID: id}
	}
	return err
}
