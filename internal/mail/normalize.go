package mail

import (
	"fmt"
	"regexp"
	"strings"
)

// maxBodyChars caps the body segment of a normalized message so that prompt
// size stays bounded regardless of what the source returns.
const maxBodyChars = 1000

// Normalize renders a raw message as the canonical four-line plain-text form
// consumed by the relevance filter and the extractor:
//
//	From: <sender>
//	Subject: <subject>
//	Date: <date>
//	Body: <cleaned body>
//
// Missing senders become "Unknown"; an empty body falls back to the subject
// so the output is never blank.
func Normalize(m RawMessage) string {
	sender := strings.TrimSpace(m.Sender)
	if sender == "" {
		sender = "Unknown"
	}

	body := cleanBody(m.Body)
	if body == "" {
		body = strings.TrimSpace(m.Subject)
	}
	if body == "" {
		body = "(no content)"
	}
	if runes := []rune(body); len(runes) > maxBodyChars {
		body = string(runes[:maxBodyChars]) + "..."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\n", sender)
	fmt.Fprintf(&sb, "Subject: %s\n", strings.TrimSpace(m.Subject))
	fmt.Fprintf(&sb, "Date: %s\n", strings.TrimSpace(m.Date))
	fmt.Fprintf(&sb, "Body: %s", body)
	return sb.String()
}

var markupRE = regexp.MustCompile(`(?s)<.*?>`)

// cleanBody strips markup tags, quoted replies, and everything below the
// first signature delimiter or quoted-reply header. Tag stripping is
// best-effort pattern matching; Gmail single-part HTML bodies arrive here
// verbatim.
func cleanBody(body string) string {
	body = markupRE.ReplaceAllString(body, "")
	body = strings.ReplaceAll(body, "\r\n", "\n")

	var kept []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			break
		}
		if strings.HasPrefix(trimmed, "On ") && strings.Contains(trimmed, "wrote:") {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}
