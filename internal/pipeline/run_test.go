package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/extract"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/llm"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/mail"
)

// failingSource simulates an unreachable mailbox.
type failingSource struct{}

func (failingSource) Fetch(context.Context, mail.Window) ([]mail.RawMessage, error) {
	return nil, errors.New("oauth token expired")
}

// fixedSource returns a canned message set.
type fixedSource struct {
	messages []mail.RawMessage
}

func (s fixedSource) Fetch(context.Context, mail.Window) ([]mail.RawMessage, error) {
	return s.messages, nil
}

// scriptedLLM answers the promo check from promoAnswers and the extraction
// prompt from analyzeAnswers, both keyed by a substring of the message.
type scriptedLLM struct {
	promoAnswers   map[string]string
	analyzeAnswers map[string]string
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ llm.CompletionOpts) (string, error) {
	if strings.HasPrefix(prompt, "Is the following email promotional") {
		for key, answer := range s.promoAnswers {
			if strings.Contains(prompt, key) {
				return answer, nil
			}
		}
		return "NO", nil
	}
	for key, answer := range s.analyzeAnswers {
		if strings.Contains(prompt, key) {
			return answer, nil
		}
	}
	return "[]", nil
}

func placeholderLLM() *scriptedLLM {
	return &scriptedLLM{
		promoAnswers: map[string]string{
			"promo@store.com": "YES",
		},
		analyzeAnswers: map[string]string{
			"alice@example.com": `[{"title": "Review the attached report", "from": "alice@example.com", "priority": "HIGH", "deadline": "Friday", "reason": "Requested review"}]`,
			"bob@example.com":   `[{"title": "Attend team meeting", "from": "bob@example.com", "priority": "MEDIUM", "deadline": "tomorrow 10am", "reason": "Team sync"}]`,
		},
	}
}

func TestRunFallbackToPlaceholders(t *testing.T) {
	st := newTestStore(t)
	agent := &Agent{Source: failingSource{}, LLM: placeholderLLM(), Store: st}

	sum, err := agent.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !sum.Fallback {
		t.Error("fetch failure should fall back to placeholders")
	}
	if sum.Fetched != 3 {
		t.Errorf("fetched = %d, want 3 placeholders", sum.Fetched)
	}
	if len(sum.NewTasks) != 2 {
		t.Fatalf("new tasks = %d, want 2 (promo message filtered)", len(sum.NewTasks))
	}
	if sum.Skipped != 1 {
		t.Errorf("skipped = %d, want 1 promotional", sum.Skipped)
	}
	if !strings.Contains(sum.Summary, "placeholder emails") {
		t.Errorf("summary should mention placeholders: %q", sum.Summary)
	}

	tasks, err := st.RecentTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("store has %d tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.EmailContext == "" {
			t.Error("persisted task should carry its source message")
		}
	}
}

func TestRunMarksProcessedAndSkipsOnRerun(t *testing.T) {
	st := newTestStore(t)
	agent := &Agent{Source: failingSource{}, LLM: placeholderLLM(), Store: st}
	ctx := context.Background()

	if _, err := agent.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}

	done, err := st.IsProcessed(ctx, "placeholder-1")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !done {
		t.Error("processed marker should be recorded")
	}

	sum, err := agent.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(sum.NewTasks) != 0 {
		t.Errorf("rerun produced %d new tasks, want 0", len(sum.NewTasks))
	}
	if sum.Skipped != 3 {
		t.Errorf("rerun skipped = %d, want all 3", sum.Skipped)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TaskCount != 2 {
		t.Errorf("rerun must not duplicate tasks: count %d", stats.TaskCount)
	}
}

func TestRunPartialFailureIsolated(t *testing.T) {
	st := newTestStore(t)
	source := fixedSource{messages: []mail.RawMessage{
		{ID: "m1", Sender: "alice@example.com", Subject: "report", Body: "review the report"},
		{ID: "m2", Sender: "dana@example.com", Subject: "broken", Body: "this one fails"},
		{ID: "m3", Sender: "bob@example.com", Subject: "meeting", Body: "team meeting"},
	}}
	model := placeholderLLM()
	model.analyzeAnswers["dana@example.com"] = "Error: model crashed"

	agent := &Agent{Source: source, LLM: model, Store: st}
	sum, err := agent.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Failures != 1 {
		t.Errorf("failures = %d, want 1", sum.Failures)
	}
	if len(sum.NewTasks) != 2 {
		t.Errorf("surviving messages should still land: got %d tasks", len(sum.NewTasks))
	}

	// The failed message stays unmarked so a later run retries it.
	done, err := st.IsProcessed(context.Background(), "m2")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if done {
		t.Error("failed message must not be marked processed")
	}
}

func TestRunDeduplicatesWithinWindow(t *testing.T) {
	st := newTestStore(t)
	// Two messages extracting the identical task.
	source := fixedSource{messages: []mail.RawMessage{
		{ID: "m1", Sender: "alice@example.com", Subject: "report", Body: "review the report"},
		{ID: "m2", Sender: "alice@example.com", Subject: "report again", Body: "review the report please"},
	}}
	model := &scriptedLLM{
		analyzeAnswers: map[string]string{
			"alice@example.com": `[{"title": "Review the attached report", "from": "alice@example.com", "priority": "HIGH", "deadline": "Friday", "reason": "Requested review"}]`,
		},
	}

	agent := &Agent{Source: source, LLM: model, Store: st}
	sum, err := agent.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sum.NewTasks) != 1 {
		t.Errorf("new tasks = %d, want 1", len(sum.NewTasks))
	}
	if len(sum.Duplicates) != 1 {
		t.Errorf("duplicates = %d, want 1", len(sum.Duplicates))
	}

	stats, _ := st.Stats(context.Background())
	if stats.TaskCount != 1 {
		t.Errorf("store should hold a single copy, has %d", stats.TaskCount)
	}
}

func TestFormatRunSummary(t *testing.T) {
	sum := &RunSummary{Summary: "Extracted 2 tasks from placeholder emails."}
	sum.NewTasks = placeholderTasks(t)

	out := FormatRunSummary(sum)
	for _, want := range []string{"Found 2 tasks", "Review the attached report", "🔴 HIGH", "Saved 2 new tasks"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	empty := FormatRunSummary(&RunSummary{Summary: "Extracted 0 tasks from placeholder emails."})
	if !strings.Contains(empty, "No actionable tasks") {
		t.Errorf("empty report should say so:\n%s", empty)
	}
}

func placeholderTasks(t *testing.T) []extract.Task {
	t.Helper()
	return []extract.Task{
		{Title: "Review the attached report", From: "alice@example.com", Priority: "HIGH", Deadline: "Friday"},
		{Title: "Attend team meeting", From: "bob@example.com", Priority: "MEDIUM", Deadline: "tomorrow 10am"},
	}
}
