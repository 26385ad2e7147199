// Package suggest turns a free-text prompt into a short list of actionable
// task suggestions using the Gemini API.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

const systemInstruction = "You are a task planning assistant. Given a description of what the user " +
	"wants to get done, respond with a short list of concrete, actionable tasks. " +
	"Each task is a single short sentence. Suggest between 3 and 7 tasks."

// Service calls the Gemini API to generate task suggestions.
type Service struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Service{client: client, model: model}, nil
}

// Suggest asks the model for task suggestions. The response is constrained to
// a JSON object with a tasks array so the output parses deterministically.
func (s *Service) Suggest(ctx context.Context, prompt string) ([]string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"tasks": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"tasks"},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	return parseSuggestions(resp.Text())
}

func parseSuggestions(raw string) ([]string, error) {
	var payload struct {
		Tasks []string `json:"tasks"`
	}
	if err := sonic.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}

	tasks := make([]string, 0, len(payload.Tasks))
	for _, task := range payload.Tasks {
		task = strings.TrimSpace(task)
		if task == "" {
			continue
		}
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("model returned no suggestions")
	}
	return tasks, nil
}
