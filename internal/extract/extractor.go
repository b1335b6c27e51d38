package extract

import (
	"context"
	"fmt"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/llm"
)

const analyzePromptTemplate = `You are an email assistant. Only include emails that require a real response or action from you, sent by real people (not automated systems).

Emails:
%s

INCLUDE:
- Meeting invites, requests for info, project updates needing acknowledgment, collaboration, time-sensitive content.

EXCLUDE:
- Promotional, marketing, newsletters, notifications, system alerts, login codes, password resets, security alerts, and any email from senders like noreply, no-reply, notification, mailer, robot, bot, do-not-reply, system, admin, support, update, service, info@, etc.

For each actionable email, create a task with:
- title: What needs to be done
- from: Who sent it
- priority: HIGH, MEDIUM, or LOW
- deadline: Any mentioned deadline or "None"
- reason: Why this needs attention

Return ONLY a JSON array of tasks, no explanation or extra text. Example:
[{"title": "...", "from": "...", "priority": "...", "deadline": "...", "reason": "..."}]
If no action is needed, return []`

// ErrPrefix marks an extractor response that carries a transport failure
// instead of model output. ParseTasks treats such responses as empty.
const ErrPrefix = "Error:"

// AnalyzeMessage sends the extraction prompt for one normalized message and
// returns the raw model output. Transport failures are folded into the
// returned string with ErrPrefix so a bad message cannot abort the run.
func AnalyzeMessage(ctx context.Context, provider llm.Provider, content string) string {
	prompt := fmt.Sprintf(analyzePromptTemplate, content)

	resp, err := provider.Complete(ctx, prompt, llm.CompletionOpts{
		MaxTokens:   10000,
		Temperature: 0.3,
	})
	if err != nil {
		return fmt.Sprintf("%s %v", ErrPrefix, err)
	}
	return resp
}
