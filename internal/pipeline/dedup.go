// Package pipeline orchestrates a run: fetch, normalize, filter, extract,
// deduplicate, persist, and optionally print a receipt per new task.
package pipeline

import (
	"context"
	"strings"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/extract"
	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/store"
)

// duplicateDistanceThreshold is the similarity cutoff below which an existing
// task is close enough to count as the same item.
const duplicateDistanceThreshold = 0.05

// MapPriority converts a validated priority label to its stored rank.
func MapPriority(label string) int {
	switch label {
	case "HIGH":
		return store.PriorityHigh
	case "LOW":
		return store.PriorityLow
	default:
		return store.PriorityMedium
	}
}

// PriorityLabel converts a stored rank back to its label.
func PriorityLabel(rank int) string {
	switch rank {
	case store.PriorityHigh:
		return "HIGH"
	case store.PriorityLow:
		return "LOW"
	default:
		return "MEDIUM"
	}
}

// IsDuplicate reports whether the candidate matches an already stored task.
// A match requires a near-identical name (distance below threshold) AND equal
// name, priority, and deadline; a changed deadline or priority makes the
// candidate a new task even when the title is the same.
func IsDuplicate(ctx context.Context, st store.Store, task extract.Task) (bool, error) {
	title := strings.ToLower(strings.TrimSpace(task.Title))
	matches, err := st.FindSimilar(ctx, title, 5)
	if err != nil {
		return false, err
	}

	priority := MapPriority(task.Priority)
	deadline := strings.TrimSpace(task.Deadline)
	for _, m := range matches {
		if m.Distance < duplicateDistanceThreshold &&
			strings.ToLower(strings.TrimSpace(m.Name)) == title &&
			m.Priority == priority &&
			strings.TrimSpace(m.DueDate) == deadline {
			return true, nil
		}
	}
	return false, nil
}
