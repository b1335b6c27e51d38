package extract

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Task is one validated candidate task extracted from an email.
type Task struct {
	Title    string `json:"title"`
	From     string `json:"from"`
	Priority string `json:"priority"` // HIGH, MEDIUM, or LOW
	Deadline string `json:"deadline"`
	Reason   string `json:"reason"`
}

// Field length caps applied during validation.
const (
	maxTitleLen    = 50
	maxSenderLen   = 30
	maxDeadlineLen = 20
	maxReasonLen   = 100
)

var (
	thinkRE = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceRE = regexp.MustCompile("```(?:json)?")
)

// automatedPatterns mark senders that slipped past the model's own
// exclusion instructions. Substring match against the lowercased sender.
var automatedPatterns = []string{
	"noreply", "no-reply", "notification", "mailer", "robot", "bot",
	"do-not-reply", "system", "admin", "support", "update", "service", "info@",
	"donotreply", "auto", "automated", "alerts", "reminder", "news", "digest",
	"newsletter", "bounce", "daemon", "postmaster",
}

// automatedDomainRE catches bare addresses whose domain is an automated
// mailbox even when the local part looks personal.
var automatedDomainRE = regexp.MustCompile(`^[^@]+@(noreply|no-reply|notifications?|mailer|robot|bot|do-not-reply|system|admin|support|update|service|info|donotreply|auto|automated|alerts|reminder|news|digest|newsletter|bounce|daemon|postmaster)\.`)

// ParseTasks decodes an extractor response into validated tasks. It tolerates
// reasoning blocks, markdown fences, wrapper objects, and alias keys; anything
// it cannot repair is dropped rather than surfaced as an error. A response
// carrying ErrPrefix or malformed JSON yields an empty slice.
func ParseTasks(response string) []Task {
	if response == "" || strings.HasPrefix(response, ErrPrefix) {
		return nil
	}

	cleaned := thinkRE.ReplaceAllString(response, "")
	cleaned = strings.ReplaceAll(cleaned, "</think>", "")
	cleaned = fenceRE.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	var decoded any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil
	}

	var valid []Task
	for _, item := range unwrapTasks(decoded) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := obj["title"]; !ok {
			continue
		}
		if task, ok := sanitizeTask(obj); ok {
			valid = append(valid, task)
		}
	}
	return valid
}

// unwrapTasks extracts the task list from the decoded JSON, accepting a bare
// array, a wrapper object keyed tasks/data/items, or a single task object.
func unwrapTasks(decoded any) []any {
	switch v := decoded.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"tasks", "data", "items"} {
			if wrapped, ok := v[key].([]any); ok {
				return wrapped
			}
		}
		return []any{v}
	default:
		return nil
	}
}

// sanitizeTask validates and caps one raw task object. It returns false for
// tasks with automated senders or titles too short to mean anything.
func sanitizeTask(obj map[string]any) (Task, bool) {
	sender := firstString(obj, "from", "sender", "email")
	if sender == "" {
		sender = "Unknown"
	}

	senderLower := strings.ToLower(strings.TrimSpace(sender))
	for _, pat := range automatedPatterns {
		if strings.Contains(senderLower, pat) {
			return Task{}, false
		}
	}
	if automatedDomainRE.MatchString(senderLower) {
		return Task{}, false
	}

	title := truncate(strings.TrimSpace(stringValue(obj["title"])), maxTitleLen)
	if utf8.RuneCountInString(title) <= 3 {
		return Task{}, false
	}

	priority := strings.ToUpper(strings.TrimSpace(stringValue(obj["priority"])))
	if priority != "HIGH" && priority != "MEDIUM" && priority != "LOW" {
		priority = "MEDIUM"
	}

	deadline := stringValue(obj["deadline"])
	if deadline == "" {
		deadline = "None"
	}

	reason := firstString(obj, "reason", "why", "description")
	if reason == "" {
		reason = "No reason provided"
	}

	return Task{
		Title:    title,
		From:     truncate(strings.TrimSpace(sender), maxSenderLen),
		Priority: priority,
		Deadline: truncate(strings.TrimSpace(deadline), maxDeadlineLen),
		Reason:   truncate(strings.TrimSpace(reason), maxReasonLen),
	}, true
}

// firstString returns the first non-empty string value among the given keys.
func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringValue(obj[key]); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, max int) string {
	if runes := []rune(s); len(runes) > max {
		return string(runes[:max])
	}
	return s
}
