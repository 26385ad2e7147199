package api

import "weeksync/domain"

const requestMaxSize = 64 * 1024 // 64 KiB

// POST /api/tasks request body
type createTaskRequest struct {
	Text     string          `json:"text"`
	Category domain.Category `json:"category"`
	Date     string          `json:"date"`
}

// POST /api/tasks/migrate request body
type migrateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type migrateResponse struct {
	MigratedCount int `json:"migratedCount"`
}

// POST /api/suggest request body
type suggestRequest struct {
	Prompt string `json:"prompt"`
}

type suggestResponse struct {
	Tasks []string `json:"tasks"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
