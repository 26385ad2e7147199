package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"weeksync/domain"
)

type stubBackend struct {
	createTaskFn   func(ctx context.Context, text string, category domain.Category, date string) (domain.Task, error)
	listDayFn      func(ctx context.Context, date string) ([]domain.Task, error)
	listWeekFn     func(ctx context.Context, weekStart string) (map[string][]domain.Task, error)
	updateTaskFn   func(ctx context.Context, id string, upd domain.TaskUpdate) error
	deleteTaskFn   func(ctx context.Context, id string) error
	migrateTasksFn func(ctx context.Context, from, to string) (int, error)
	pingFn         func(ctx context.Context) error
}

func (s *stubBackend) CreateTask(ctx context.Context, text string, category domain.Category, date string) (domain.Task, error) {
	if s.createTaskFn == nil {
		return domain.Task{}, errors.New("unexpected CreateTask call")
	}
	return s.createTaskFn(ctx, text, category, date)
}

func (s *stubBackend) ListDay(ctx context.Context, date string) ([]domain.Task, error) {
	if s.listDayFn == nil {
		return nil, errors.New("unexpected ListDay call")
	}
	return s.listDayFn(ctx, date)
}

func (s *stubBackend) ListWeek(ctx context.Context, weekStart string) (map[string][]domain.Task, error) {
	if s.listWeekFn == nil {
		return nil, errors.New("unexpected ListWeek call")
	}
	return s.listWeekFn(ctx, weekStart)
}

func (s *stubBackend) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error {
	if s.updateTaskFn == nil {
		return errors.New("unexpected UpdateTask call")
	}
	return s.updateTaskFn(ctx, id, upd)
}

func (s *stubBackend) DeleteTask(ctx context.Context, id string) error {
	if s.deleteTaskFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, id)
}

func (s *stubBackend) MigrateTasks(ctx context.Context, from, to string) (int, error) {
	if s.migrateTasksFn == nil {
		return 0, errors.New("unexpected MigrateTasks call")
	}
	return s.migrateTasksFn(ctx, from, to)
}

func (s *stubBackend) Ping(ctx context.Context) error {
	if s.pingFn == nil {
		return errors.New("unexpected Ping call")
	}
	return s.pingFn(ctx)
}

func newCacheFixture(t *testing.T, base backend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(base, client, time.Minute), mr
}

func TestCacheListDayMissThenHit(t *testing.T) {
	ctx := context.Background()
	expected := []domain.Task{{ID: "t1", Text: "Write code", Category: domain.CategoryCode, Date: "2024-06-03"}}

	var calls int
	cache, mr := newCacheFixture(t, &stubBackend{
		listDayFn: func(ctx context.Context, date string) ([]domain.Task, error) {
			calls++
			if date != "2024-06-03" {
				t.Fatalf("unexpected date: %s", date)
			}
			return append([]domain.Task(nil), expected...), nil
		},
	})

	tasks, err := cache.ListDay(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}
	if ttl := mr.TTL("tasks:0:day:2024-06-03"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.ListDay(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("cached list day: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached tasks: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached fetch to avoid backend, calls=%d", calls)
	}
}

func TestCacheListWeekMissThenHit(t *testing.T) {
	ctx := context.Background()
	expected := map[string][]domain.Task{
		"2024-06-03": {{ID: "t1", Text: "Write code", Category: domain.CategoryCode, Date: "2024-06-03"}},
		"2024-06-05": {{ID: "t2", Text: "Laundry", Category: domain.CategoryChores, Date: "2024-06-05"}},
	}

	var calls int
	cache, _ := newCacheFixture(t, &stubBackend{
		listWeekFn: func(ctx context.Context, weekStart string) (map[string][]domain.Task, error) {
			calls++
			if weekStart != "2024-06-03" {
				t.Fatalf("unexpected week start: %s", weekStart)
			}
			return expected, nil
		},
	})

	week, err := cache.ListWeek(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("list week: %v", err)
	}
	if !reflect.DeepEqual(week, expected) {
		t.Fatalf("unexpected week: %#v", week)
	}

	cached, err := cache.ListWeek(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("cached list week: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached week: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached fetch to avoid backend, calls=%d", calls)
	}
}

func TestCacheMutationsInvalidateReads(t *testing.T) {
	ctx := context.Background()
	initial := []domain.Task{{ID: "t1", Text: "initial", Category: domain.CategoryOther, Date: "2024-06-03"}}
	updated := []domain.Task{{ID: "t1", Text: "initial", Category: domain.CategoryOther, Date: "2024-06-03", Completed: true}}

	responses := [][]domain.Task{initial, updated}
	var fetchCalls int
	done := true
	cache, _ := newCacheFixture(t, &stubBackend{
		listDayFn: func(context.Context, string) ([]domain.Task, error) {
			res := responses[fetchCalls]
			fetchCalls++
			return append([]domain.Task(nil), res...), nil
		},
		updateTaskFn: func(context.Context, string, domain.TaskUpdate) error { return nil },
	})

	first, err := cache.ListDay(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("initial list: %v", err)
	}
	if !reflect.DeepEqual(first, initial) {
		t.Fatalf("unexpected initial tasks: %#v", first)
	}

	if err := cache.UpdateTask(ctx, "t1", domain.TaskUpdate{Completed: &done}); err != nil {
		t.Fatalf("update: %v", err)
	}

	second, err := cache.ListDay(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("post-update list: %v", err)
	}
	if !reflect.DeepEqual(second, updated) {
		t.Fatalf("expected fresh tasks after mutation: %#v", second)
	}
	if fetchCalls != 2 {
		t.Fatalf("expected mutation to force a backend fetch, calls=%d", fetchCalls)
	}
}

func TestCacheZeroCountMigrateKeepsCache(t *testing.T) {
	ctx := context.Background()
	tasks := []domain.Task{{ID: "t1", Text: "keep", Category: domain.CategoryOther, Date: "2024-06-03"}}

	var fetchCalls int
	cache, _ := newCacheFixture(t, &stubBackend{
		listDayFn: func(context.Context, string) ([]domain.Task, error) {
			fetchCalls++
			return append([]domain.Task(nil), tasks...), nil
		},
		migrateTasksFn: func(context.Context, string, string) (int, error) { return 0, nil },
	})

	if _, err := cache.ListDay(ctx, "2024-06-03"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if moved, err := cache.MigrateTasks(ctx, "2024-06-02", "2024-06-03"); err != nil || moved != 0 {
		t.Fatalf("migrate: moved=%d err=%v", moved, err)
	}
	if _, err := cache.ListDay(ctx, "2024-06-03"); err != nil {
		t.Fatalf("list after no-op migrate: %v", err)
	}
	if fetchCalls != 1 {
		t.Fatalf("no-op migrate should not invalidate, calls=%d", fetchCalls)
	}
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	expected := []domain.Task{{ID: "t1", Text: "offline", Category: domain.CategoryOther, Date: "2024-06-03"}}

	var calls int
	cache, mr := newCacheFixture(t, &stubBackend{
		listDayFn: func(context.Context, string) ([]domain.Task, error) {
			calls++
			return append([]domain.Task(nil), expected...), nil
		},
	})
	mr.Close()

	for i := 0; i < 2; i++ {
		tasks, err := cache.ListDay(ctx, "2024-06-03")
		if err != nil {
			t.Fatalf("list with redis down: %v", err)
		}
		if !reflect.DeepEqual(tasks, expected) {
			t.Fatalf("unexpected tasks: %#v", tasks)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every read to hit the backend, calls=%d", calls)
	}
}
