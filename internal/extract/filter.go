// Package extract turns normalized email text into validated candidate tasks.
//
// The flow is filter -> analyze -> parse: a cheap YES/NO relevance check,
// a JSON-array extraction prompt, then tolerant parsing and validation of
// whatever the model returned. Model failures never abort a run; they
// degrade to "not promotional" or an empty task list.
package extract

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/llm"
)

const promoPromptTemplate = `Is the following email promotional, marketing, automated, a notification, password reset or sent by a system/robot? Only answer YES or NO.

Email:
%s

Answer YES if the email is promotional, marketing, automated, notification, password reset or sent by a system/robot (including noreply, no-reply, notification, mailer, robot, bot, do-not-reply, system, admin, support, update, service, info@, etc.).
Answer NO if the email is from a real person and requires a genuine response or action.

Only output YES or NO.`

// Matches any tag-like run, including reasoning blocks some local models emit.
var tagRE = regexp.MustCompile(`(?s)<.*?>`)

// IsPromotional asks the model whether the message is promotional or
// automated. The answer is normalized before checking for YES/NO; ambiguous
// or failed checks are treated as not promotional so real mail is never
// silently dropped.
func IsPromotional(ctx context.Context, provider llm.Provider, content string) bool {
	prompt := fmt.Sprintf(promoPromptTemplate, content)

	resp, err := provider.Complete(ctx, prompt, llm.CompletionOpts{
		MaxTokens:   1000,
		Temperature: 0.1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: promo check failed: %v\n", err)
		return false
	}

	cleaned := thinkRE.ReplaceAllString(resp, "")
	cleaned = tagRE.ReplaceAllString(cleaned, "")
	cleaned = strings.ToUpper(strings.TrimSpace(cleaned))
	cleaned = strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(cleaned)

	hasYes := strings.Contains(cleaned, "YES")
	hasNo := strings.Contains(cleaned, "NO")
	switch {
	case hasYes && !hasNo:
		return true
	case hasNo && !hasYes:
		return false
	default:
		fmt.Fprintf(os.Stderr, "Warning: ambiguous promo check output %q, treating as not promotional\n", resp)
		return false
	}
}
