package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"weeksync/domain"
)

type backend interface {
	CreateTask(ctx context.Context, text string, category domain.Category, date string) (domain.Task, error)
	ListDay(ctx context.Context, date string) ([]domain.Task, error)
	ListWeek(ctx context.Context, weekStart string) (map[string][]domain.Task, error)
	UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error
	DeleteTask(ctx context.Context, id string) error
	MigrateTasks(ctx context.Context, from, to string) (int, error)
	Ping(ctx context.Context) error
}

const cacheGenKey = "tasks:gen"

// Cache wraps a Storage instance with Redis-backed caching for the day and
// week list queries. Invalidation is generation based: every mutation bumps a
// counter that is part of each cache key, so stale entries are never read and
// simply expire with their TTL. Redis failures degrade silently to the backing
// store.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListDay(ctx context.Context, date string) ([]domain.Task, error) {
	key, ok := c.key(ctx, "day:"+date)
	if ok {
		if tasks, hit := c.loadTasks(ctx, key); hit {
			return tasks, nil
		}
	}
	tasks, err := c.base.ListDay(ctx, date)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, tasks)
	}
	return tasks, nil
}

func (c *Cache) ListWeek(ctx context.Context, weekStart string) (map[string][]domain.Task, error) {
	key, ok := c.key(ctx, "week:"+weekStart)
	if ok {
		if week, hit := c.loadWeek(ctx, key); hit {
			return week, nil
		}
	}
	week, err := c.base.ListWeek(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, week)
	}
	return week, nil
}

func (c *Cache) CreateTask(ctx context.Context, text string, category domain.Category, date string) (domain.Task, error) {
	task, err := c.base.CreateTask(ctx, text, category, date)
	if err != nil {
		return domain.Task{}, err
	}
	c.invalidate(ctx)
	return task, nil
}

func (c *Cache) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error {
	if err := c.base.UpdateTask(ctx, id, upd); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) MigrateTasks(ctx context.Context, from, to string) (int, error) {
	moved, err := c.base.MigrateTasks(ctx, from, to)
	if err != nil {
		return moved, err
	}
	if moved > 0 {
		c.invalidate(ctx)
	}
	return moved, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

// key resolves the generation-qualified cache key. ok is false when Redis is
// unavailable and the cache should be bypassed.
func (c *Cache) key(ctx context.Context, suffix string) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	gen, err := c.redis.Get(ctx, cacheGenKey).Int64()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return "tasks:" + strconv.FormatInt(gen, 10) + ":" + suffix, true
}

func (c *Cache) invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Incr(ctx, cacheGenKey).Err()
}

func (c *Cache) loadTasks(ctx context.Context, key string) ([]domain.Task, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) loadWeek(ctx context.Context, key string) (map[string][]domain.Task, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var week map[string][]domain.Task
	if err := json.Unmarshal(data, &week); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return week, true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}
