// Package client provides a Go client for the WeekSync API along with an
// optimistic local state manager for building interactive frontends.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"weeksync/domain"
)

const defaultTimeout = 30 * time.Second

// APIError carries the status code and message of a failed API call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client is a thin HTTP wrapper around the WeekSync API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) ListDay(ctx context.Context, date string) ([]domain.Task, error) {
	var tasks []domain.Task
	path := "/api/tasks?date=" + url.QueryEscape(date)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) ListWeek(ctx context.Context, weekStart string) (map[string][]domain.Task, error) {
	var week map[string][]domain.Task
	path := "/api/tasks/week?startOfWeek=" + url.QueryEscape(weekStart)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &week); err != nil {
		return nil, err
	}
	return week, nil
}

func (c *Client) CreateTask(ctx context.Context, text string, category domain.Category, date string) (domain.Task, error) {
	body := map[string]any{"text": text, "category": category, "date": date}
	var task domain.Task
	if err := c.doJSON(ctx, http.MethodPost, "/api/tasks", body, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error {
	return c.doJSON(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), upd, nil)
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

// Migrate moves incomplete tasks from one day to another and returns how many
// tasks were moved.
func (c *Client) Migrate(ctx context.Context, from, to string) (int, error) {
	body := map[string]string{"from": from, "to": to}
	var resp struct {
		MigratedCount int `json:"migratedCount"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/tasks/migrate", body, &resp); err != nil {
		return 0, err
	}
	return resp.MigratedCount, nil
}

func (c *Client) Suggest(ctx context.Context, prompt string) ([]string, error) {
	body := map[string]string{"prompt": prompt}
	var resp struct {
		Tasks []string `json:"tasks"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/suggest", body, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if sonic.Unmarshal(raw, &msg) == nil && msg.Message != "" {
			apiErr.Message = msg.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
