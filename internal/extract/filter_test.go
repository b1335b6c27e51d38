package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/llm"
)

// fakeProvider returns a canned response (or error) and records the last prompt.
type fakeProvider struct {
	response   string
	err        error
	lastPrompt string
	lastOpts   llm.CompletionOpts
}

func (f *fakeProvider) Complete(_ context.Context, prompt string, opts llm.CompletionOpts) (string, error) {
	f.lastPrompt = prompt
	f.lastOpts = opts
	return f.response, f.err
}

func (f *fakeProvider) Name() string { return "fake" }

func TestIsPromotional(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     bool
	}{
		{"plain yes", "YES", nil, true},
		{"plain no", "NO", nil, false},
		{"yes with reasoning block", "<think>marketing blast, not personal</think>\nYES", nil, true},
		{"spaced answer", "  Y E S  ", nil, true},
		{"ambiguous both", "YES or NO, hard to say", nil, false},
		{"ambiguous neither", "maybe", nil, false},
		{"provider failure", "", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{response: tt.response, err: tt.err}
			got := IsPromotional(context.Background(), p, "From: x@example.com\nSubject: s\nDate: d\nBody: b")
			if got != tt.want {
				t.Errorf("IsPromotional() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPromotionalPromptContainsMessage(t *testing.T) {
	p := &fakeProvider{response: "NO"}
	content := "From: alice@example.com\nSubject: lunch\nDate: today\nBody: lunch at noon?"
	IsPromotional(context.Background(), p, content)

	if !strings.Contains(p.lastPrompt, content) {
		t.Error("prompt should embed the normalized message")
	}
	if p.lastOpts.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", p.lastOpts.Temperature)
	}
}
