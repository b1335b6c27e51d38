package pipeline

import (
	"fmt"
	"strings"
)

var priorityGlyphs = map[string]string{
	"HIGH":   "🔴 HIGH",
	"MEDIUM": "🟡 MEDIUM",
	"LOW":    "🟢 LOW",
}

// FormatRunSummary renders the run report shown after an extraction pass.
func FormatRunSummary(s *RunSummary) string {
	var sb strings.Builder
	rule := strings.Repeat("=", 50)

	total := len(s.NewTasks) + len(s.Duplicates)
	if total == 0 {
		sb.WriteString("No actionable tasks found in recent emails\n")
	} else {
		fmt.Fprintf(&sb, "Found %d tasks\n", total)
		fmt.Fprintf(&sb, "\nSUMMARY:\n   %s\n", s.Summary)

		sb.WriteString("\nEXTRACTED TASKS:\n")
		i := 0
		for _, task := range s.NewTasks {
			i++
			glyph, ok := priorityGlyphs[task.Priority]
			if !ok {
				glyph = "❓ UNKNOWN"
			}
			fmt.Fprintf(&sb, "\n%d. %s\n", i, task.Title)
			fmt.Fprintf(&sb, "   Priority: %s\n", glyph)
			fmt.Fprintf(&sb, "   Due: %s\n", task.Deadline)
		}

		if len(s.NewTasks) > 0 {
			fmt.Fprintf(&sb, "\nSaved %d new tasks to database\n", len(s.NewTasks))
		}
		if len(s.Duplicates) > 0 {
			fmt.Fprintf(&sb, "\nFound %d duplicate tasks that were not saved:\n", len(s.Duplicates))
			for _, task := range s.Duplicates {
				fmt.Fprintf(&sb, "   - %s\n", task.Title)
			}
		}
	}

	if s.Failures > 0 {
		fmt.Fprintf(&sb, "\n%d messages failed and were skipped\n", s.Failures)
	}
	sb.WriteString("\n" + rule + "\n")
	return sb.String()
}
