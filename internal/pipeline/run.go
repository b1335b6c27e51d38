package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/extract"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/llm"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/mail"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/printer"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/store"
)

// DefaultLookbackDays bounds the fetch window when none is configured.
const DefaultLookbackDays = 7

// Agent wires the pipeline collaborators for a run.
type Agent struct {
	Source mail.Source
	LLM    llm.Provider
	Store  store.Store

	// Printer emits a receipt per newly saved task. Nil disables printing.
	Printer *printer.Printer

	LookbackDays int // fetch window in days (default 7)
	MaxMessages  int // cap on fetched messages (0 = source default)
}

// RunSummary reports what one run did.
type RunSummary struct {
	Fallback   bool // placeholder messages were used
	WindowFrom time.Time
	Fetched    int
	Skipped    int // already processed or promotional
	Extracted  int
	NewTasks   []extract.Task
	Duplicates []extract.Task
	Failures   int
	Summary    string
}

// persistError marks a storage failure, which aborts the run instead of
// being absorbed into the per-message failure count.
type persistError struct{ err error }

func (e *persistError) Error() string { return e.err.Error() }
func (e *persistError) Unwrap() error { return e.err }

// Run executes one extraction pass. A failed fetch falls back to the
// placeholder messages; a failure on one message is counted and skipped so
// the rest of the batch still lands. Only storage errors abort the run.
func (a *Agent) Run(ctx context.Context) (*RunSummary, error) {
	days := a.LookbackDays
	if days <= 0 {
		days = DefaultLookbackDays
	}

	sum := &RunSummary{WindowFrom: time.Now().AddDate(0, 0, -days)}

	msgs, err := a.Source.Fetch(ctx, mail.Window{After: sum.WindowFrom, MaxResults: a.MaxMessages})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not fetch emails: %v\nUsing placeholder emails.\n", err)
		msgs = mail.PlaceholderMessages()
		sum.Fallback = true
	}
	sum.Fetched = len(msgs)

	tracker, hasTracker := a.Store.(store.ProcessedTracker)

	for _, msg := range msgs {
		if hasTracker && msg.ID != "" {
			done, err := tracker.IsProcessed(ctx, msg.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: checking processed marker for %s: %v\n", msg.ID, err)
			} else if done {
				sum.Skipped++
				continue
			}
		}

		if err := a.processMessage(ctx, msg, sum); err != nil {
			var pe *persistError
			if errors.As(err, &pe) {
				return sum, err
			}
			sum.Failures++
			fmt.Fprintf(os.Stderr, "Warning: processing message %s: %v\n", msg.ID, err)
			continue
		}

		if hasTracker && msg.ID != "" {
			if err := tracker.MarkProcessed(ctx, msg.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: marking %s processed: %v\n", msg.ID, err)
			}
		}
	}

	if sum.Fallback {
		sum.Summary = fmt.Sprintf("Extracted %d tasks from placeholder emails.", len(sum.NewTasks)+len(sum.Duplicates))
	} else {
		sum.Summary = fmt.Sprintf("Extracted %d tasks from emails after %s.",
			len(sum.NewTasks)+len(sum.Duplicates), sum.WindowFrom.Format("2006/01/02"))
	}
	return sum, nil
}

func (a *Agent) processMessage(ctx context.Context, msg mail.RawMessage, sum *RunSummary) error {
	normalized := mail.Normalize(msg)

	if extract.IsPromotional(ctx, a.LLM, normalized) {
		sum.Skipped++
		return nil
	}

	raw := extract.AnalyzeMessage(ctx, a.LLM, normalized)
	if strings.HasPrefix(raw, extract.ErrPrefix) {
		return fmt.Errorf("analyzing message: %s", strings.TrimSpace(strings.TrimPrefix(raw, extract.ErrPrefix)))
	}

	tasks := extract.ParseTasks(raw)
	sum.Extracted += len(tasks)

	for _, task := range tasks {
		dup, err := IsDuplicate(ctx, a.Store, task)
		if err != nil {
			return fmt.Errorf("checking duplicates for %q: %w", task.Title, err)
		}
		if dup {
			sum.Duplicates = append(sum.Duplicates, task)
			continue
		}

		rec := &store.TaskRecord{
			Name:         task.Title,
			Priority:     MapPriority(task.Priority),
			DueDate:      strings.TrimSpace(task.Deadline),
			EmailContext: normalized,
		}
		if err := a.Store.AddTask(ctx, rec); err != nil {
			return &persistError{fmt.Errorf("saving task %q: %w", task.Title, err)}
		}
		sum.NewTasks = append(sum.NewTasks, task)

		if a.Printer != nil {
			if _, err := a.Printer.PrintTask(task); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: printing receipt for %q: %v\n", task.Title, err)
			}
		}
	}
	return nil
}
