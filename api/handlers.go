package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"weeksync/domain"
)

// Register wires up all API routes on the provided Echo instance. suggester
// may be nil when no suggestion backend is configured.
func Register(e *echo.Echo, store Storage, suggester Suggester, logger *log.Logger) {
	e.Use(GzipRequestMiddleware())

	e.GET("/api/tasks", getDayTasks(store, logger))
	e.GET("/api/tasks/week", getWeekTasks(store, logger))
	e.POST("/api/tasks", postTask(store))
	e.PUT("/api/tasks/:id", putTask(store))
	e.DELETE("/api/tasks/:id", deleteTask(store))
	e.POST("/api/tasks/migrate", postMigrate(store))
	e.POST("/api/suggest", postSuggest(suggester))
	e.GET("/health", health(store))
}

func getDayTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, ctx := newRequestMetrics(ctx, logger, "/api/tasks")
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		date := c.QueryParam("date")
		if date == "" {
			metrics.SetErrorStage("missing_date")
			err = c.JSON(http.StatusBadRequest, messageResponse{Message: "date parameter is required"})
			return err
		}
		if _, perr := domain.ParseDay(date); perr != nil {
			metrics.SetErrorStage("invalid_date")
			err = c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid date"})
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.ListDay(ctx, date)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.JSON(http.StatusInternalServerError, messageResponse{Message: "internal server error"})
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getWeekTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, ctx := newRequestMetrics(ctx, logger, "/api/tasks/week")
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		weekStart := c.QueryParam("startOfWeek")
		if weekStart == "" {
			metrics.SetErrorStage("missing_start_of_week")
			err = c.JSON(http.StatusBadRequest, messageResponse{Message: "startOfWeek parameter is required"})
			return err
		}
		if _, perr := domain.ParseDay(weekStart); perr != nil {
			metrics.SetErrorStage("invalid_start_of_week")
			err = c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid startOfWeek"})
			return err
		}

		fetchStart := time.Now()
		week, fetchErr := store.ListWeek(ctx, weekStart)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.JSON(http.StatusInternalServerError, messageResponse{Message: "internal server error"})
			return err
		}
		count := 0
		for _, tasks := range week {
			count += len(tasks)
		}
		metrics.SetTasksReturned(count)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, week)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid body"})
		}
		if strings.TrimSpace(req.Text) == "" {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "text is required"})
		}
		if !req.Category.Valid() {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid category"})
		}
		if _, err := domain.ParseDay(req.Date); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid date"})
		}

		task, err := store.CreateTask(c.Request().Context(), req.Text, req.Category, req.Date)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: "internal server error"})
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func putTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if uuid.Validate(id) != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid task id"})
		}

		var upd domain.TaskUpdate
		if err := decodeBody(c, &upd); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid body"})
		}
		if upd.Empty() {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "no fields to update"})
		}
		if upd.Text != nil && strings.TrimSpace(*upd.Text) == "" {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "text is required"})
		}
		if upd.Category != nil && !upd.Category.Valid() {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid category"})
		}
		if upd.Date != nil {
			if _, err := domain.ParseDay(*upd.Date); err != nil {
				return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid date"})
			}
		}

		if err := store.UpdateTask(c.Request().Context(), id, upd); err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, messageResponse{Message: "task not found"})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: "internal server error"})
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "task updated successfully"})
	}
}

func deleteTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if uuid.Validate(id) != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid task id"})
		}

		if err := store.DeleteTask(c.Request().Context(), id); err != nil {
			var nf NotFoundError
			if errors.As(err, &nf) {
				return c.JSON(http.StatusNotFound, messageResponse{Message: "task not found"})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: "internal server error"})
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "task deleted successfully"})
	}
}

func postMigrate(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req migrateRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid body"})
		}
		if _, err := domain.ParseDay(req.From); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "missing from or to date"})
		}
		if _, err := domain.ParseDay(req.To); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "missing from or to date"})
		}

		moved, err := store.MigrateTasks(c.Request().Context(), req.From, req.To)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: "internal server error"})
		}
		return c.JSON(http.StatusOK, migrateResponse{MigratedCount: moved})
	}
}

func postSuggest(suggester Suggester) echo.HandlerFunc {
	return func(c echo.Context) error {
		if suggester == nil {
			return c.JSON(http.StatusServiceUnavailable, messageResponse{Message: "suggestions are not configured"})
		}

		var req suggestRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "invalid body"})
		}
		if strings.TrimSpace(req.Prompt) == "" {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "prompt is required"})
		}

		tasks, err := suggester.Suggest(c.Request().Context(), req.Prompt)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, messageResponse{Message: "failed to suggest tasks"})
		}
		return c.JSON(http.StatusOK, suggestResponse{Tasks: tasks})
	}
}

func health(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, healthResponse{Status: "error", Message: "store unreachable"})
		}
		return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
