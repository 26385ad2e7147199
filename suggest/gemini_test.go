package suggest

import (
	"context"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestParseSuggestions(t *testing.T) {
	tasks, err := parseSuggestions(`{"tasks":["Review the budget","  Plan the sprint  ",""]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %#v", tasks)
	}
	if tasks[0] != "Review the budget" || tasks[1] != "Plan the sprint" {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
}

func TestParseSuggestionsRejectsBadPayloads(t *testing.T) {
	testCases := map[string]string{
		"not_json":    "here are your tasks",
		"empty_array": `{"tasks":[]}`,
		"only_blank":  `{"tasks":["  "]}`,
	}
	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseSuggestions(raw); err == nil {
				t.Fatalf("expected error for payload %q", raw)
			}
		})
	}
}
