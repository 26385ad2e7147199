package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"

	"weeksync/domain"
)

func TestClientListDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "2024-06-03" {
			t.Fatalf("unexpected date: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","text":"water plants","category":"chores","date":"2024-06-03"}]`))
	}))
	defer srv.Close()

	tasks, err := New(srv.URL).ListDay(context.Background(), "2024-06-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Text != "water plants" {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
}

func TestClientCreateTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := sonic.Unmarshal(body, &req); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if req["text"] != "buy milk" || req["category"] != "errands" {
			t.Fatalf("unexpected request: %#v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc","text":"buy milk","category":"errands","date":"2024-06-03"}`))
	}))
	defer srv.Close()

	task, err := New(srv.URL).CreateTask(context.Background(), "buy milk", domain.CategoryErrands, "2024-06-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "abc" {
		t.Fatalf("unexpected task: %#v", task)
	}
}

func TestClientUpdateTaskSendsOnlySetFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/tasks/abc" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := sonic.Unmarshal(body, &req); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if req["completed"] != true {
			t.Fatalf("expected completed=true, got %#v", req)
		}
		if _, present := req["text"]; present {
			t.Fatalf("unset field leaked into request: %#v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"task updated successfully"}`))
	}))
	defer srv.Close()

	completed := true
	if err := New(srv.URL).UpdateTask(context.Background(), "abc", domain.TaskUpdate{Completed: &completed}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientMigrate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks/migrate" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"migratedCount":4}`))
	}))
	defer srv.Close()

	moved, err := New(srv.URL).Migrate(context.Background(), "2024-06-02", "2024-06-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved != 4 {
		t.Fatalf("unexpected count: %d", moved)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"task not found"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).DeleteTask(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "task not found" {
		t.Fatalf("unexpected error: %#v", apiErr)
	}
}

func TestClientFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream blew up"))
	}))
	defer srv.Close()

	err := New(srv.URL).Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
}
