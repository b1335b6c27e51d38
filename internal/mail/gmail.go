package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// GmailSource fetches messages from Gmail via the `gog` CLI.
type GmailSource struct {
	// Account is the Gmail account email (e.g., "user@gmail.com").
	Account string

	// Query is an extra Gmail search query ANDed with the window
	// (e.g., "is:unread", "from:boss@co.com").
	Query string

	// SkipCategories lists Gmail categories to drop before extraction
	// (e.g., ["CATEGORY_PROMOTIONS", "CATEGORY_SOCIAL"]).
	SkipCategories []string

	// GogPath overrides the gog binary path. Default: "gog" from PATH.
	GogPath string
}

func (s *GmailSource) gogBinary() string {
	if s.GogPath != "" {
		return s.GogPath
	}
	return "gog"
}

// Validate checks the source is usable before a run starts.
func (s *GmailSource) Validate() error {
	if s.Account == "" {
		return fmt.Errorf("account email is required")
	}
	if !strings.Contains(s.Account, "@") {
		return fmt.Errorf("account must be a valid email address")
	}
	if _, err := exec.LookPath(s.gogBinary()); err != nil {
		return fmt.Errorf("gog CLI not found (looked for %q). Install gog or set gog_path in config", s.gogBinary())
	}
	return nil
}

func (s *GmailSource) shouldSkip(labels []string) bool {
	if len(s.SkipCategories) == 0 {
		return false
	}
	skipSet := make(map[string]bool, len(s.SkipCategories))
	for _, cat := range s.SkipCategories {
		skipSet[strings.ToUpper(cat)] = true
	}
	for _, label := range labels {
		if skipSet[strings.ToUpper(label)] {
			return true
		}
	}
	return false
}

// Fetch returns one RawMessage per matching thread, using the first message
// of the thread for headers and body. A failed thread fetch degrades to a
// metadata-only message rather than aborting the whole window.
func (s *GmailSource) Fetch(ctx context.Context, w Window) ([]RawMessage, error) {
	query := fmt.Sprintf("after:%d", w.After.Unix())
	if s.Query != "" {
		query += " " + s.Query
	}

	maxResults := w.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > 500 {
		maxResults = 500
	}

	threads, err := gogGmailSearch(ctx, s.gogBinary(), s.Account, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("gmail search failed: %w", err)
	}

	var messages []RawMessage
	for _, thread := range threads {
		if s.shouldSkip(thread.Labels) {
			continue
		}

		msg := RawMessage{
			ID:      thread.ID,
			Sender:  thread.From,
			Subject: thread.Subject,
			Date:    thread.Date,
		}

		full, err := gogGmailThreadGet(ctx, s.gogBinary(), s.Account, thread.ID)
		if err == nil && len(full.Messages) > 0 {
			first := full.Messages[0]
			if from := getHeader(first.Payload.Headers, "From"); from != "" {
				msg.Sender = from
			}
			if date := getHeader(first.Payload.Headers, "Date"); date != "" {
				msg.Date = date
			}
			msg.Body = extractBody(first.Payload)
		}

		messages = append(messages, msg)
	}

	return messages, nil
}

// --- gog CLI interface ---

// gogThread represents a thread from `gog gmail search -j --results-only`.
type gogThread struct {
	ID           string   `json:"id"`
	Subject      string   `json:"subject"`
	From         string   `json:"from"`
	Date         string   `json:"date"`
	Labels       []string `json:"labels"`
	MessageCount int      `json:"messageCount"`
}

// gogFullThread represents the full thread from `gog gmail thread get -j --results-only --full`.
type gogFullThread struct {
	Messages []gogMessage `json:"messages"`
}

type gogMessage struct {
	ID      string     `json:"id"`
	Payload gogPayload `json:"payload"`
}

type gogPayload struct {
	Headers []gogHeader `json:"headers"`
	Body    gogBody     `json:"body"`
	Parts   []gogPart   `json:"parts,omitempty"`
}

type gogHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gogBody struct {
	Data string `json:"data,omitempty"`
	Size int    `json:"size"`
}

type gogPart struct {
	MimeType string    `json:"mimeType"`
	Body     gogBody   `json:"body"`
	Parts    []gogPart `json:"parts,omitempty"`
}

func gogGmailSearch(ctx context.Context, gogPath, account, query string, maxResults int) ([]gogThread, error) {
	args := []string{
		"gmail", "search", query,
		"--account", account,
		"-j", "--results-only",
		"--max", fmt.Sprintf("%d", maxResults),
		"--no-input",
	}

	cmd := exec.CommandContext(ctx, gogPath, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("gog gmail search failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("running gog: %w", err)
	}

	var threads []gogThread
	if err := json.Unmarshal(out, &threads); err != nil {
		return nil, fmt.Errorf("parsing gog output: %w", err)
	}

	return threads, nil
}

func gogGmailThreadGet(ctx context.Context, gogPath, account, threadID string) (*gogFullThread, error) {
	args := []string{
		"gmail", "thread", "get", threadID,
		"--account", account,
		"-j", "--results-only", "--full",
		"--no-input",
	}

	cmd := exec.CommandContext(ctx, gogPath, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("gog thread get failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("running gog: %w", err)
	}

	// gog wraps the thread in {"thread": {...}, "downloaded": ...}
	var wrapper struct {
		Thread gogFullThread `json:"thread"`
	}
	if err := json.Unmarshal(out, &wrapper); err != nil {
		return nil, fmt.Errorf("parsing gog thread output: %w", err)
	}

	return &wrapper.Thread, nil
}

func getHeader(headers []gogHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody walks the MIME parts tree to find text/plain content.
func extractBody(payload gogPayload) string {
	if payload.Body.Data != "" {
		return payload.Body.Data
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body.Data != "" {
			return part.Body.Data
		}
		if len(part.Parts) > 0 {
			for _, sub := range part.Parts {
				if sub.MimeType == "text/plain" && sub.Body.Data != "" {
					return sub.Body.Data
				}
			}
		}
	}

	return ""
}
